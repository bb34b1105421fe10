package entity

import (
	"strings"
	"time"
)

// Well-known entity states. Trackers report home/not_home (or a zone name);
// binary presence entities report on/off.
const (
	StateHome        = "home"
	StateNotHome     = "not_home"
	StateOn          = "on"
	StateOff         = "off"
	StateUnknown     = "unknown"
	StateUnavailable = "unavailable"
)

// State is a point-in-time snapshot of an entity: its identifier, its state
// string, any attributes reported alongside it, and when it was produced.
type State struct {
	EntityID    string    `json:"entity_id"`
	State       string    `json:"state"`
	Attributes  Attrs     `json:"attributes,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
}

// Domain returns the entity domain (the part before the first dot),
// e.g. "device_tracker" for "device_tracker.phone_anna".
// Returns "" if the entity ID has no domain prefix.
func (s State) Domain() string {
	idx := strings.IndexByte(s.EntityID, '.')
	if idx < 0 {
		return ""
	}
	return s.EntityID[:idx]
}

// Usable reports whether the state carries usable data. The unknown and
// unavailable placeholder states are rejected before any fusion logic runs.
func (s State) Usable() bool {
	return s.State != "" && s.State != StateUnknown && s.State != StateUnavailable
}

// LastSeen returns the moment the producing device last confirmed the
// state, preferring the last_seen attributes over LastUpdated.
//
// Clock skew between devices and the service can otherwise put sightings
// in the future; callers clamp against their own clock.
func (s State) LastSeen() time.Time {
	if ts, ok := s.Attributes.Time(AttrsLastSeen...); ok {
		return ts
	}
	return s.LastUpdated
}
