package tracker

import (
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-presence/internal/dispatch"
)

// compassRose maps 45-degree sectors to their labels. The trailing "N"
// catches angles in [337.5, 360).
var compassRose = [...]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW", "N"}

// compassSectorDegrees is the rosette sector width.
const compassSectorDegrees = 45

// compassDirection maps an angle in [0, 360) to its 8-point compass label.
// Sector boundaries sit at each 22.5-degree offset, so e.g. NE covers
// [22.5, 67.5).
func compassDirection(angle float64) string {
	return compassRose[int((angle+compassSectorDegrees/2.0)/compassSectorDegrees)]
}

// SpeedSensor is the companion numeric sensor fed by the tracker's speed
// dispatch signal.
//
// The tracker may dispatch before the sensor's Start has run (the
// scanner's bootstrap pass fires during wiring). Early samples are
// buffered and flushed by Start, never dropped.
//
// Dispatcher delivery and Start both mutate sensor state; a mutex keeps
// them safe against each other since Start runs on the wiring goroutine.
type SpeedSensor struct {
	groupID   string
	publisher Publisher
	logger    Logger

	mu         sync.Mutex
	started    bool
	pending    *SpeedSample
	disconnect func()
}

// NewSpeedSensor creates the sensor and connects it to the group's speed
// signal. Call Start once wiring is complete, Close on shutdown.
func NewSpeedSensor(groupID string, dispatcher *dispatch.Dispatcher, publisher Publisher, logger Logger) *SpeedSensor {
	if logger == nil {
		logger = noopLogger{}
	}
	s := &SpeedSensor{
		groupID:   groupID,
		publisher: publisher,
		logger:    logger,
	}
	s.disconnect = dispatcher.Connect(SpeedSignal(groupID), s.handle)
	return s
}

// handle receives a dispatched SpeedSample on the scheduler loop.
func (s *SpeedSensor) handle(args ...any) {
	if len(args) != 1 {
		s.logger.Warn("unexpected speed dispatch payload", "group", s.groupID, "args", len(args))
		return
	}
	sample, ok := args[0].(SpeedSample)
	if !ok {
		s.logger.Warn("unexpected speed dispatch type", "group", s.groupID)
		return
	}

	s.mu.Lock()
	if !s.started {
		// Arrived before Start: retain for the flush.
		s.pending = &sample
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.publish(sample)
}

// Start flushes any sample that arrived before initialization finished.
func (s *SpeedSensor) Start() {
	s.mu.Lock()
	s.started = true
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	if pending != nil {
		s.publish(*pending)
	}
}

// publish renders the sample into the sensor's observable state. A nil
// speed publishes a cleared sensor.
func (s *SpeedSensor) publish(sample SpeedSample) {
	state := SensorState{
		GroupID:   s.groupID,
		SpeedMPS:  sample.SpeedMPS,
		Angle:     sample.Angle,
		UpdatedAt: time.Now().UTC(),
	}
	if sample.Angle != nil {
		state.Direction = compassDirection(*sample.Angle)
	}
	s.publisher.PublishSensorState(state)
}

// Close disconnects the sensor from its dispatch signal.
func (s *SpeedSensor) Close() {
	if s.disconnect != nil {
		s.disconnect()
		s.disconnect = nil
	}
}
