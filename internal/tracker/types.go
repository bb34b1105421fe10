package tracker

import (
	"time"

	"github.com/nerrad567/gray-logic-presence/internal/entity"
	"github.com/nerrad567/gray-logic-presence/internal/geo"
)

// SourceKind classifies a member's underlying tracking technology.
type SourceKind string

const (
	SourceGPS            SourceKind = "gps"
	SourceRouter         SourceKind = "router"
	SourceBluetooth      SourceKind = "bluetooth"
	SourceBluetoothLE    SourceKind = "bluetooth_le"
	SourceBinaryPresence SourceKind = "binary_presence"
	SourceUnknown        SourceKind = "unknown"
)

// binarySensorDomain marks entities whose on/off state maps to home/not_home.
const binarySensorDomain = "binary_sensor"

// classifySource determines the source kind of a raw state.
// Binary sensor entities are presence sensors by construction; everything
// else declares itself through the source_type attribute. Trackers that
// omit the attribute but carry a complete location payload are treated
// as GPS sources.
func classifySource(s entity.State, loc *Location) SourceKind {
	if s.Domain() == binarySensorDomain {
		return SourceBinaryPresence
	}
	st, ok := s.Attributes.String(entity.AttrSourceType)
	if !ok {
		if loc != nil {
			return SourceGPS
		}
		return SourceUnknown
	}
	switch SourceKind(st) {
	case SourceGPS, SourceRouter, SourceBluetooth, SourceBluetoothLE:
		return SourceKind(st)
	default:
		return SourceUnknown
	}
}

// MemberStatus is the data-quality lifecycle of one member.
type MemberStatus string

const (
	// StatusInactive: no accepted data yet.
	StatusInactive MemberStatus = "inactive"
	// StatusActive: producing good data.
	StatusActive MemberStatus = "active"
	// StatusWarned: one anomaly observed while active.
	StatusWarned MemberStatus = "warned"
	// StatusSuspended: repeated anomalies; excluded from the group.
	StatusSuspended MemberStatus = "suspended"
)

// Location is a coordinate with its GPS accuracy radius in metres.
type Location struct {
	geo.Point
	Accuracy float64 `json:"accuracy"`
}

// Sighting is the canonical fused result of one accepted member update.
// It is constructed fresh per acceptance and never mutated afterwards.
type Sighting struct {
	// GroupID identifies the fusion group; MemberID the member whose
	// update produced this sighting.
	GroupID  string
	MemberID string

	// State is the resolved presence state: "home", "not_home", or a
	// zone's friendly name.
	State string

	// LocationName is set instead of coordinates when the accepted data
	// carries only a state string.
	LocationName string

	// Location holds fused coordinates, nil when only LocationName applies.
	Location *Location

	BatteryLevel    *float64
	BatteryCharging *bool

	SourceKind SourceKind

	// ObservedAt is when the producing member last confirmed the data.
	ObservedAt time.Time

	// ObservedAtDisplay is ObservedAt rounded to the nearest second and
	// rendered in the group's configured time-as mode.
	ObservedAtDisplay string

	// TimeZone is the resolved device timezone name for device time-as
	// modes, "unknown" when resolution failed, empty otherwise.
	TimeZone string

	// Members lists every member that has reported data so far, sorted.
	Members []string

	// Picture is the display picture reference, set only when the
	// producing member is the group's picture provider.
	Picture string
}

// SpeedSample is the derived speed/heading metric between two consecutive
// sightings that both carry coordinates. A sample with a nil speed clears
// the companion sensor: it means the latest accepted sighting could not
// produce a speed.
type SpeedSample struct {
	// SpeedMPS is metres per second, rounded to one decimal. Nil when no
	// speed could be derived.
	SpeedMPS *float64

	// Angle is the direction of travel in degrees [0, 360), nil when the
	// speed is too low for the angle to be meaningful.
	Angle *float64
}

// SpeedSignal returns the dispatcher signal key carrying SpeedSamples
// for a group.
func SpeedSignal(groupID string) string {
	return "composite_speed_" + groupID
}

// Logger is the logging surface the fusion engine needs.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger discards all log output.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
