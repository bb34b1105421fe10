package tracker

import (
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-presence/internal/entity"
	"github.com/nerrad567/gray-logic-presence/internal/geo"
)

func stateWithSource(entityID, sourceType string) entity.State {
	attrs := entity.Attrs{}
	if sourceType != "" {
		attrs[entity.AttrSourceType] = sourceType
	}
	return entity.State{EntityID: entityID, State: entity.StateNotHome, Attributes: attrs}
}

func TestMemberAnomalyLadder(t *testing.T) {
	m := &member{entityID: "device_tracker.phone", status: StatusInactive}

	if suspend := m.bad(); suspend || m.status != StatusActive {
		t.Fatalf("after first anomaly: suspend=%v status=%v, want active", suspend, m.status)
	}
	if suspend := m.bad(); suspend || m.status != StatusWarned {
		t.Fatalf("after second anomaly: suspend=%v status=%v, want warned", suspend, m.status)
	}
	if suspend := m.bad(); !suspend || m.status != StatusSuspended {
		t.Fatalf("after third anomaly: suspend=%v status=%v, want suspended", suspend, m.status)
	}
	// Suspension is terminal for bad().
	if suspend := m.bad(); !suspend || m.status != StatusSuspended {
		t.Fatalf("repeat anomaly on suspended: suspend=%v status=%v", suspend, m.status)
	}
}

func TestMemberGoodResetsWarning(t *testing.T) {
	m := &member{entityID: "device_tracker.phone", status: StatusWarned}
	m.good()
	if m.status != StatusActive {
		t.Fatalf("status = %v after good(), want active", m.status)
	}

	// A recovered member gets the full ladder again.
	if suspend := m.bad(); suspend {
		t.Error("recovered member suspended on a single anomaly")
	}
}

func TestMemberRecord(t *testing.T) {
	m := &member{entityID: "device_tracker.phone"}
	seen := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	loc := &Location{Accuracy: 10}

	m.record(seen, SourceGPS, loc, "")
	if !m.lastSeen.Equal(seen) || m.sourceKind != SourceGPS || m.loc != loc {
		t.Fatalf("record() stored %+v", m)
	}

	// Non-GPS payloads replace the location with a state string.
	m.record(seen.Add(time.Minute), SourceRouter, nil, "not_home")
	if m.loc != nil || m.state != "not_home" {
		t.Fatalf("record() kept stale payload: %+v", m)
	}
}

func TestClassifySource(t *testing.T) {
	located := &Location{Point: geo.Point{Latitude: 51.5, Longitude: -0.12}, Accuracy: 10}

	tests := []struct {
		entityID   string
		sourceType string
		loc        *Location
		want       SourceKind
	}{
		{"device_tracker.phone", "gps", nil, SourceGPS},
		{"device_tracker.phone", "router", nil, SourceRouter},
		{"device_tracker.phone", "bluetooth", nil, SourceBluetooth},
		{"device_tracker.phone", "bluetooth_le", nil, SourceBluetoothLE},
		{"binary_sensor.bed_occupancy", "", nil, SourceBinaryPresence},
		{"device_tracker.phone", "carrier_pigeon", nil, SourceUnknown},
		{"device_tracker.phone", "", nil, SourceUnknown},
		// Attribute absent but a full location payload present.
		{"device_tracker.phone", "", located, SourceGPS},
		// A declared non-GPS source keeps its kind even when located.
		{"device_tracker.phone", "router", located, SourceRouter},
		// An unrecognized declared source stays unknown even when located.
		{"device_tracker.phone", "carrier_pigeon", located, SourceUnknown},
	}
	for _, tt := range tests {
		s := stateWithSource(tt.entityID, tt.sourceType)
		if got := classifySource(s, tt.loc); got != tt.want {
			t.Errorf("classifySource(%s, %q, loc=%v) = %v, want %v",
				tt.entityID, tt.sourceType, tt.loc != nil, got, tt.want)
		}
	}
}
