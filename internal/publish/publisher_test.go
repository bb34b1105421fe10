package publish

import (
	"context"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-presence/internal/tracker"
)

type fakeBroker struct {
	topics   []string
	payloads [][]byte
	err      error
}

func (b *fakeBroker) PublishRetained(topic string, payload []byte) error {
	b.topics = append(b.topics, topic)
	b.payloads = append(b.payloads, payload)
	return b.err
}

type fakeHub struct {
	channels []string
	payloads []any
}

func (h *fakeHub) Broadcast(channel string, payload any) {
	h.channels = append(h.channels, channel)
	h.payloads = append(h.payloads, payload)
}

type fakeHistory struct {
	sightings int
	speeds    []float64
	angles    []float64
}

func (h *fakeHistory) WriteSighting(string, string, float64, float64, float64, time.Time) {
	h.sightings++
}

func (h *fakeHistory) WriteSpeedSample(_ string, speed, angle float64) {
	h.speeds = append(h.speeds, speed)
	h.angles = append(h.angles, angle)
}

type fakeSnapshots struct {
	saved []tracker.TrackerState
}

func (s *fakeSnapshots) Save(_ context.Context, state tracker.TrackerState) error {
	s.saved = append(s.saved, state)
	return nil
}

func (s *fakeSnapshots) Get(context.Context, string) (*tracker.TrackerState, error) {
	return nil, tracker.ErrSnapshotNotFound
}

func (s *fakeSnapshots) Delete(context.Context, string) error { return nil }

func TestPublishTrackerStateAllSinks(t *testing.T) {
	broker := &fakeBroker{}
	hub := &fakeHub{}
	history := &fakeHistory{}
	snapshots := &fakeSnapshots{}
	p := New(Options{Broker: broker, Hub: hub, History: history, Snapshots: snapshots})

	lat, lon := 51.5, -0.12
	p.PublishTrackerState(tracker.TrackerState{
		GroupID: "family", State: "home",
		Latitude: &lat, Longitude: &lon, GPSAccuracy: 10,
		UpdatedAt: time.Now().UTC(),
	})

	if len(broker.topics) != 1 || broker.topics[0] != "presence/core/tracker/family" {
		t.Errorf("broker topics = %v", broker.topics)
	}
	if len(hub.channels) != 1 || hub.channels[0] != ChannelTrackerState {
		t.Errorf("hub channels = %v", hub.channels)
	}
	if history.sightings != 1 {
		t.Errorf("history sightings = %d, want 1", history.sightings)
	}
	if len(snapshots.saved) != 1 || snapshots.saved[0].GroupID != "family" {
		t.Errorf("snapshots = %+v", snapshots.saved)
	}
}

func TestPublishTrackerStateWithoutCoordinates(t *testing.T) {
	history := &fakeHistory{}
	p := New(Options{Broker: &fakeBroker{}, History: history})

	p.PublishTrackerState(tracker.TrackerState{GroupID: "family", State: "not_home"})

	if history.sightings != 0 {
		t.Errorf("history sightings = %d, want 0 without coordinates", history.sightings)
	}
}

func TestPublishSensorState(t *testing.T) {
	broker := &fakeBroker{}
	history := &fakeHistory{}
	p := New(Options{Broker: broker, History: history})

	speed := 12.3
	angle := 45.0
	p.PublishSensorState(tracker.SensorState{GroupID: "family", SpeedMPS: &speed, Angle: &angle})

	if len(broker.topics) != 1 || broker.topics[0] != "presence/core/sensor/family_speed" {
		t.Errorf("broker topics = %v", broker.topics)
	}
	if len(history.speeds) != 1 || history.speeds[0] != 12.3 || history.angles[0] != 45.0 {
		t.Errorf("history speeds = %v angles = %v", history.speeds, history.angles)
	}

	// Without an angle the sentinel suppresses the field downstream.
	p.PublishSensorState(tracker.SensorState{GroupID: "family", SpeedMPS: &speed})
	if history.angles[1] != -1.0 {
		t.Errorf("angle sentinel = %v, want -1", history.angles[1])
	}
}

func TestPublisherToleratesNilSinks(t *testing.T) {
	p := New(Options{Broker: &fakeBroker{}})

	// Must not panic with hub, history, and snapshots unset.
	p.PublishTrackerState(tracker.TrackerState{GroupID: "family", State: "home"})
	p.PublishSensorState(tracker.SensorState{GroupID: "family"})
}
