package statebus

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-presence/internal/entity"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/mqtt"
)

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
}

// noopLogger discards all log output.
type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Debug(string, ...any) {}

// Broker is the subset of the MQTT client the bus needs.
type Broker interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Bus is the MQTT-backed implementation of entity.Bus.
//
// It subscribes once to the member state wildcard topic, decodes incoming
// payloads into entity.State values, remembers the latest state per
// entity, and fans changes out to per-entity subscribers.
//
// Handlers run on paho's handler goroutines. Delivery per entity follows
// broker ordering; handlers for different entities may run concurrently.
type Bus struct {
	broker Broker
	qos    byte
	logger Logger

	mu       sync.RWMutex
	latest   map[string]entity.State
	handlers map[string]map[int]entity.Handler
	nextID   int
}

// statePayload is the wire format published on presence/state/{entity_id}.
type statePayload struct {
	EntityID    string       `json:"entity_id"`
	State       string       `json:"state"`
	Attributes  entity.Attrs `json:"attributes,omitempty"`
	LastUpdated *time.Time   `json:"last_updated,omitempty"`
}

// New creates the bus and subscribes to the member state wildcard.
//
// Parameters:
//   - broker: Connected MQTT client
//   - qos: QoS level for the wildcard subscription
//   - logger: Logger for malformed payloads (nil for silent)
//
// Returns:
//   - *Bus: Ready bus receiving state updates
//   - error: If the wildcard subscription fails
func New(broker Broker, qos byte, logger Logger) (*Bus, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	b := &Bus{
		broker:   broker,
		qos:      qos,
		logger:   logger,
		latest:   make(map[string]entity.State),
		handlers: make(map[string]map[int]entity.Handler),
	}

	topic := mqtt.Topics{}.AllMemberStates()
	if err := broker.Subscribe(topic, qos, b.handleMessage); err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	return b, nil
}

// handleMessage decodes one member state message and fans it out.
func (b *Bus) handleMessage(topic string, payload []byte) error {
	var p statePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		b.logger.Warn("discarding malformed state payload", "topic", topic, "error", err)
		return nil // malformed payloads are logged, not retried
	}

	// The topic suffix is authoritative for the entity ID; the payload
	// field is optional and must agree when present.
	entityID := entityIDFromTopic(topic)
	if entityID == "" {
		b.logger.Warn("discarding state on unexpected topic", "topic", topic)
		return nil
	}
	if p.EntityID != "" && p.EntityID != entityID {
		b.logger.Warn("discarding state with mismatched entity_id",
			"topic", topic, "payload_entity_id", p.EntityID)
		return nil
	}

	s := entity.State{
		EntityID:    entityID,
		State:       p.State,
		Attributes:  p.Attributes,
		LastUpdated: time.Now().UTC(),
	}
	if p.LastUpdated != nil {
		s.LastUpdated = p.LastUpdated.UTC()
	}

	b.mu.Lock()
	b.latest[entityID] = s
	targets := make([]entity.Handler, 0, len(b.handlers[entityID]))
	for _, fn := range b.handlers[entityID] {
		targets = append(targets, fn)
	}
	b.mu.Unlock()

	for _, fn := range targets {
		fn(s)
	}
	return nil
}

// Subscribe registers a handler for state changes of one entity.
// Implements entity.Bus.
func (b *Bus) Subscribe(entityID string, fn entity.Handler) (func(), error) {
	if entityID == "" {
		return nil, fmt.Errorf("entity ID is required")
	}
	if fn == nil {
		return nil, fmt.Errorf("handler is required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[entityID] == nil {
		b.handlers[entityID] = make(map[int]entity.Handler)
	}
	id := b.nextID
	b.nextID++
	b.handlers[entityID][id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[entityID], id)
		if len(b.handlers[entityID]) == 0 {
			delete(b.handlers, entityID)
		}
	}, nil
}

// Latest returns the most recent state seen for the entity.
// Implements entity.Bus.
func (b *Bus) Latest(entityID string) (entity.State, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.latest[entityID]
	return s, ok
}

// Close unsubscribes from the member state wildcard.
func (b *Bus) Close() error {
	return b.broker.Unsubscribe(mqtt.Topics{}.AllMemberStates())
}

// entityIDFromTopic extracts the entity ID from presence/state/{entity_id}.
func entityIDFromTopic(topic string) string {
	prefix := mqtt.TopicPrefix + "/state/"
	if !strings.HasPrefix(topic, prefix) {
		return ""
	}
	id := topic[len(prefix):]
	if strings.ContainsAny(id, "/#+") {
		return ""
	}
	return id
}
