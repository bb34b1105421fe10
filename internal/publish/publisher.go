package publish

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-presence/internal/tracker"
)

// WebSocket channels state updates are broadcast on.
const (
	ChannelTrackerState = "tracker.state_changed"
	ChannelSensorState  = "sensor.state_changed"
)

// snapshotTimeout bounds the SQLite snapshot write. The publisher runs on
// the scheduler loop, which must not stall on a locked database file.
const snapshotTimeout = 2 * time.Second

// Broker is the retained-publish surface of the MQTT client.
type Broker interface {
	PublishRetained(topic string, payload []byte) error
}

// Broadcaster pushes events to connected WebSocket clients.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// History records sightings and speed samples for time-series queries.
// Writes are fire-and-forget; the implementation batches internally.
type History interface {
	WriteSighting(groupID, state string, latitude, longitude, accuracy float64, seenAt time.Time)
	WriteSpeedSample(groupID string, speedMPS, angle float64)
}

// Logger is the minimal logging interface this package needs.
type Logger interface {
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
}

// Publisher fans composite state out to every configured sink: the MQTT
// broker (retained), WebSocket clients, InfluxDB history, and the SQLite
// snapshot store. Every sink except the broker is optional.
//
// Sink failures are logged and never propagate: one slow or broken sink
// must not stop the others or the fusion pipeline.
type Publisher struct {
	broker    Broker
	hub       Broadcaster
	history   History
	snapshots tracker.SnapshotRepository
	logger    Logger
}

// Options wires a Publisher. Broker is required; the rest may be nil.
type Options struct {
	Broker    Broker
	Hub       Broadcaster
	History   History
	Snapshots tracker.SnapshotRepository
	Logger    Logger
}

// New creates a Publisher from the given sinks.
func New(opts Options) *Publisher {
	return &Publisher{
		broker:    opts.Broker,
		hub:       opts.Hub,
		history:   opts.History,
		snapshots: opts.Snapshots,
		logger:    opts.Logger,
	}
}

// PublishTrackerState pushes a composite tracker state to all sinks.
func (p *Publisher) PublishTrackerState(s tracker.TrackerState) {
	payload, err := json.Marshal(s)
	if err != nil {
		p.warn("marshalling tracker state", s.GroupID, err)
		return
	}

	if p.broker != nil {
		if err := p.broker.PublishRetained(mqtt.Topics{}.TrackerState(s.GroupID), payload); err != nil {
			p.warn("publishing tracker state", s.GroupID, err)
		}
	}
	if p.hub != nil {
		p.hub.Broadcast(ChannelTrackerState, s)
	}
	if p.history != nil && s.Latitude != nil && s.Longitude != nil {
		p.history.WriteSighting(s.GroupID, s.State, *s.Latitude, *s.Longitude, s.GPSAccuracy, s.UpdatedAt)
	}
	if p.snapshots != nil {
		ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
		defer cancel()
		if err := p.snapshots.Save(ctx, s); err != nil {
			p.warn("saving tracker snapshot", s.GroupID, err)
		}
	}
}

// PublishSensorState pushes a speed sensor state to all sinks.
func (p *Publisher) PublishSensorState(s tracker.SensorState) {
	payload, err := json.Marshal(s)
	if err != nil {
		p.warn("marshalling sensor state", s.GroupID, err)
		return
	}

	if p.broker != nil {
		if err := p.broker.PublishRetained(mqtt.Topics{}.SensorState(s.GroupID), payload); err != nil {
			p.warn("publishing sensor state", s.GroupID, err)
		}
	}
	if p.hub != nil {
		p.hub.Broadcast(ChannelSensorState, s)
	}
	if p.history != nil && s.SpeedMPS != nil {
		angle := -1.0
		if s.Angle != nil {
			angle = *s.Angle
		}
		p.history.WriteSpeedSample(s.GroupID, *s.SpeedMPS, angle)
	}
}

func (p *Publisher) warn(action, groupID string, err error) {
	if p.logger != nil {
		p.logger.Warn(action+" failed", "group", groupID, "error", err)
	}
}
