package tracker

import (
	"math"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-presence/internal/dispatch"
	"github.com/nerrad567/gray-logic-presence/internal/entity"
	"github.com/nerrad567/gray-logic-presence/internal/geo"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/config"
)

// Speed derivation constants.
const (
	// minSpeedSeconds is the minimum interval between two sightings for a
	// speed to be computed; shorter intervals amplify timestamp noise.
	minSpeedSeconds = 3.0

	// memberSwitchFactor multiplies the minimum interval when consecutive
	// sightings come from different members, whose clocks and accuracies
	// are not comparable at short intervals.
	memberSwitchFactor = 3

	// minAngleSpeed is the speed (m/s) below which the direction of
	// travel is noise and no angle is reported.
	minAngleSpeed = 1.0
)

// StateDriving is substituted for not_home when the group moves at or
// above its configured driving speed.
const StateDriving = "driving"

// Attribute keys on the composite tracker's observable state.
const (
	AttrEntities        = "entities"
	AttrLastEntityID    = "last_entity_id"
	AttrLastSeen        = "last_seen"
	AttrBatteryCharging = "battery_charging"
	AttrTimeZone        = "time_zone"
)

// restoreAttrs is the allow-list of attributes copied from a persisted
// snapshot at startup. Anything else is considered stale.
var restoreAttrs = []string{
	AttrEntities, AttrLastEntityID, AttrLastSeen, AttrBatteryCharging, AttrTimeZone,
}

// TrackerState is the composite tracker's observable state, published to
// MQTT (retained), broadcast to WebSocket clients, and snapshotted to
// SQLite for restoration.
type TrackerState struct {
	GroupID      string         `json:"group_id"`
	Name         string         `json:"name"`
	State        string         `json:"state"`
	Latitude     *float64       `json:"latitude,omitempty"`
	Longitude    *float64       `json:"longitude,omitempty"`
	GPSAccuracy  float64        `json:"gps_accuracy"`
	BatteryLevel *float64       `json:"battery_level,omitempty"`
	SourceKind   SourceKind     `json:"source_kind,omitempty"`
	Picture      string         `json:"entity_picture,omitempty"`
	Attributes   map[string]any `json:"attributes,omitempty"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// SensorState is the companion speed sensor's observable state.
type SensorState struct {
	GroupID   string    `json:"group_id"`
	SpeedMPS  *float64  `json:"speed_mps"`
	Angle     *float64  `json:"angle,omitempty"`
	Direction string    `json:"direction,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Publisher pushes observable state to the outside world (broker,
// WebSocket clients, history storage). Implementations must be callable
// from the scheduler loop without blocking for long.
type Publisher interface {
	PublishTrackerState(s TrackerState)
	PublishSensorState(s SensorState)
}

// CompositeTracker adapts accepted sightings into observable state and
// derives the speed metric between consecutive located sightings.
//
// HandleSighting runs exclusively on the scheduler loop. The published
// snapshot is additionally guarded by a mutex so API handlers can read it
// from their own goroutines.
type CompositeTracker struct {
	cfg        config.GroupConfig
	publisher  Publisher
	dispatcher *dispatch.Dispatcher
	logger     Logger

	mu      sync.RWMutex
	current TrackerState

	// Speed memory, loop-only. Restored snapshots never populate these:
	// only sightings from the current runtime count as a previous point.
	prevSeen     time.Time
	prevPoint    *geo.Point
	lastMemberID string
}

// NewCompositeTracker creates the entity adaptor for one group.
func NewCompositeTracker(cfg config.GroupConfig, publisher Publisher, dispatcher *dispatch.Dispatcher, logger Logger) *CompositeTracker {
	if logger == nil {
		logger = noopLogger{}
	}
	return &CompositeTracker{
		cfg:        cfg,
		publisher:  publisher,
		dispatcher: dispatcher,
		logger:     logger,
		current: TrackerState{
			GroupID: cfg.ID,
			Name:    cfg.Name,
			Picture: cfg.EntityPicture,
		},
	}
}

// Restore seeds the tracker from a persisted snapshot before the scanner
// is attached. Only the picture and the allow-listed attributes survive;
// the snapshot never becomes the previous point for speed computation.
func (t *CompositeTracker) Restore(snap TrackerState) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.current.State = snap.State
	if snap.Picture != "" {
		t.current.Picture = snap.Picture
	}
	if len(snap.Attributes) > 0 {
		attrs := make(map[string]any, len(restoreAttrs))
		for _, key := range restoreAttrs {
			if v, ok := snap.Attributes[key]; ok {
				attrs[key] = v
			}
		}
		t.current.Attributes = attrs
	}
	t.logger.Debug("restored tracker snapshot", "group", t.cfg.ID, "state", snap.State)
}

// HandleSighting consumes one accepted sighting: derives speed, applies
// the driving substitution, updates observable state, and publishes.
// Must run on the scheduler loop.
func (t *CompositeTracker) HandleSighting(s Sighting) {
	state := s.State

	// Speed needs two located sightings from this runtime. Every accepted
	// sighting still dispatches a sample so the companion sensor clears
	// when no speed could be derived. The one exception is an interval too
	// short to trust, which dispatches nothing and leaves the sensor alone.
	sample := &SpeedSample{}
	if t.prevPoint != nil && !t.prevSeen.IsZero() && s.Location != nil {
		seconds := s.ObservedAt.Sub(t.prevSeen).Seconds()
		minSeconds := float64(minSpeedSeconds)
		if s.MemberID != t.lastMemberID {
			minSeconds *= memberSwitchFactor
		}
		if seconds >= minSeconds {
			dist := geo.Distance(*t.prevPoint, s.Location.Point)
			speed := math.Round(dist/seconds*10) / 10
			sample.SpeedMPS = &speed

			if speed > minAngleSpeed {
				a := math.Round(geo.Angle(*t.prevPoint, s.Location.Point))
				sample.Angle = &a
			}

			if t.cfg.DrivingSpeed != nil && speed >= *t.cfg.DrivingSpeed && state == entity.StateNotHome {
				state = StateDriving
			}
		} else {
			sample = nil
			t.logger.Debug("skipping speed, interval too short",
				"group", t.cfg.ID, "seconds", seconds, "min_seconds", minSeconds)
		}
	}
	if sample != nil {
		if err := t.dispatcher.Send(SpeedSignal(t.cfg.ID), *sample); err != nil {
			t.logger.Warn("dropping speed sample", "group", t.cfg.ID, "error", err)
		}
	}

	next := TrackerState{
		GroupID:      t.cfg.ID,
		Name:         t.cfg.Name,
		State:        state,
		GPSAccuracy:  0,
		BatteryLevel: s.BatteryLevel,
		SourceKind:   s.SourceKind,
		UpdatedAt:    time.Now().UTC(),
		Attributes: map[string]any{
			AttrEntities:     s.Members,
			AttrLastEntityID: s.MemberID,
			AttrLastSeen:     s.ObservedAtDisplay,
		},
	}
	if s.Location != nil {
		lat, lon := s.Location.Latitude, s.Location.Longitude
		next.Latitude = &lat
		next.Longitude = &lon
		next.GPSAccuracy = s.Location.Accuracy
	}
	if s.BatteryCharging != nil {
		next.Attributes[AttrBatteryCharging] = *s.BatteryCharging
	}
	if s.TimeZone != "" {
		next.Attributes[AttrTimeZone] = s.TimeZone
	}

	t.mu.Lock()
	// The picture persists across sightings from non-picture members.
	switch {
	case s.Picture != "":
		next.Picture = s.Picture
	case t.current.Picture != "":
		next.Picture = t.current.Picture
	}
	t.current = next
	t.mu.Unlock()

	t.prevSeen = s.ObservedAt
	t.lastMemberID = s.MemberID
	if s.Location != nil {
		p := s.Location.Point
		t.prevPoint = &p
	} else {
		t.prevPoint = nil
	}

	t.publisher.PublishTrackerState(next)
}

// Current returns a copy of the published observable state.
// Safe to call from any goroutine.
func (t *CompositeTracker) Current() TrackerState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := t.current
	if t.current.Attributes != nil {
		out.Attributes = make(map[string]any, len(t.current.Attributes))
		for k, v := range t.current.Attributes {
			out.Attributes[k] = v
		}
	}
	return out
}
