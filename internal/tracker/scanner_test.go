package tracker

import (
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-presence/internal/entity"
	"github.com/nerrad567/gray-logic-presence/internal/geo"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-presence/internal/scheduler"
	"github.com/nerrad567/gray-logic-presence/internal/zone"
)

// Test site geometry: home at 51.5000,-0.1200 with a 100m radius.
var (
	testHomePoint = geo.Point{Latitude: 51.5000, Longitude: -0.1200}
	testAwayPoint = geo.Point{Latitude: 51.6000, Longitude: -0.2000}
)

func testRegistry() *zone.Registry {
	return zone.NewRegistry([]zone.Zone{
		{
			ID: "z-home", Name: "Home", Slug: zone.HomeSlug,
			Latitude: testHomePoint.Latitude, Longitude: testHomePoint.Longitude, Radius: 100,
		},
	})
}

// fakeBus is an in-memory entity.Bus delivering synchronously on the
// caller's goroutine, like the broker handler goroutines do in production.
type fakeBus struct {
	mu       sync.Mutex
	handlers map[string]map[int]entity.Handler
	latest   map[string]entity.State
	nextID   int
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		handlers: make(map[string]map[int]entity.Handler),
		latest:   make(map[string]entity.State),
	}
}

func (b *fakeBus) Subscribe(entityID string, fn entity.Handler) (func(), error) {
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
	}, nil
}

func (b *fakeBus) Latest(entityID string) (entity.State, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.latest[entityID]
	return s, ok
}

func (b *fakeBus) setLatest(s entity.State) {
	b.mu.Lock()
	b.latest[s.EntityID] = s
	b.mu.Unlock()
}

func (b *fakeBus) send(s entity.State) {
	b.mu.Lock()
	b.latest[s.EntityID] = s
	targets := make([]entity.Handler, 0, len(b.handlers[s.EntityID]))
	for _, fn := range b.handlers[s.EntityID] {
		targets = append(targets, fn)
	}
	b.mu.Unlock()
	for _, fn := range targets {
		fn(s)
	}
}

func (b *fakeBus) handlerCount(entityID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers[entityID])
}

// harness wires a scanner against fakes and collects emitted sightings.
type harness struct {
	t         *testing.T
	bus       *fakeBus
	loop      *scheduler.Loop
	sc        *Scanner
	sightings chan Sighting
}

func newHarness(t *testing.T, cfg config.GroupConfig) *harness {
	t.Helper()
	h := &harness{
		t:         t,
		bus:       newFakeBus(),
		loop:      scheduler.NewLoop(),
		sightings: make(chan Sighting, 32),
	}
	t.Cleanup(h.loop.Close)

	sc, err := NewScanner(cfg, h.bus, testRegistry(), h.loop,
		geo.FixedTimezoneFinder{}, nil,
		func(s Sighting) { h.sightings <- s })
	if err != nil {
		t.Fatalf("NewScanner() error = %v", err)
	}
	h.sc = sc
	t.Cleanup(sc.Close)
	return h
}

func (h *harness) start() {
	h.t.Helper()
	if err := h.sc.Start(); err != nil {
		h.t.Fatalf("Start() error = %v", err)
	}
}

// flush waits until the loop has run everything queued so far.
func (h *harness) flush() {
	h.t.Helper()
	if err := h.loop.Call(func() {}); err != nil {
		h.t.Fatalf("loop flush error = %v", err)
	}
}

func (h *harness) expectSighting() Sighting {
	h.t.Helper()
	h.flush()
	select {
	case s := <-h.sightings:
		return s
	default:
		h.t.Fatal("expected a sighting, got none")
		return Sighting{}
	}
}

func (h *harness) expectNone() {
	h.t.Helper()
	h.flush()
	select {
	case s := <-h.sightings:
		h.t.Fatalf("expected no sighting, got one from %s (state %s)", s.MemberID, s.State)
	default:
	}
}

var testBase = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func at(seconds int) time.Time {
	return testBase.Add(time.Duration(seconds) * time.Second)
}

func gpsState(entityID string, p geo.Point, acc float64, seen time.Time) entity.State {
	return entity.State{
		EntityID: entityID,
		State:    entity.StateNotHome,
		Attributes: entity.Attrs{
			entity.AttrSourceType: "gps",
			"latitude":            p.Latitude,
			"longitude":           p.Longitude,
			"gps_accuracy":        acc,
			"last_seen":           seen.Format(time.RFC3339),
		},
		LastUpdated: seen,
	}
}

func routerState(entityID, state string, seen time.Time) entity.State {
	return entity.State{
		EntityID: entityID,
		State:    state,
		Attributes: entity.Attrs{
			entity.AttrSourceType: "router",
			"last_seen":           seen.Format(time.RFC3339),
		},
		LastUpdated: seen,
	}
}

func boolPtr(b bool) *bool { return &b }

func groupCfg(members ...config.MemberConfig) config.GroupConfig {
	return config.GroupConfig{
		ID:              "family",
		Name:            "Family",
		Members:         members,
		RequireMovement: boolPtr(false),
		TimeAs:          config.TimeAsUTC,
	}
}

func TestScannerAcceptsValidGPSSequence(t *testing.T) {
	h := newHarness(t, groupCfg(config.MemberConfig{Entity: "device_tracker.phone"}))
	h.start()

	points := []geo.Point{
		testAwayPoint,
		{Latitude: 51.6010, Longitude: -0.2000},
		{Latitude: 51.6020, Longitude: -0.2010},
	}
	for i, p := range points {
		h.bus.send(gpsState("device_tracker.phone", p, 10, at(i*60)))
		s := h.expectSighting()
		if s.Location == nil {
			t.Fatal("gps sighting without location")
		}
		if s.Location.Latitude != p.Latitude {
			t.Errorf("sighting %d latitude = %v, want %v", i, s.Location.Latitude, p.Latitude)
		}
		if s.SourceKind != SourceGPS {
			t.Errorf("sighting %d source kind = %v, want gps", i, s.SourceKind)
		}
	}
}

func TestScannerRejectsIncompleteGPS(t *testing.T) {
	h := newHarness(t, groupCfg(config.MemberConfig{Entity: "device_tracker.phone"}))
	h.start()

	// Missing accuracy.
	s := gpsState("device_tracker.phone", testAwayPoint, 10, at(0))
	delete(s.Attributes, "gps_accuracy")
	h.bus.send(s)
	h.expectNone()

	// Missing longitude.
	s = gpsState("device_tracker.phone", testAwayPoint, 10, at(60))
	delete(s.Attributes, "longitude")
	h.bus.send(s)
	h.expectNone()
}

func TestScannerDropsDuplicateGPS(t *testing.T) {
	h := newHarness(t, groupCfg(config.MemberConfig{Entity: "device_tracker.phone"}))
	h.start()

	s := gpsState("device_tracker.phone", testAwayPoint, 10, at(0))
	h.bus.send(s)
	h.expectSighting()

	// Same last_seen, identical payload: duplicate delivery.
	h.bus.send(s)
	h.expectNone()
}

func TestScannerRequireMovement(t *testing.T) {
	cfg := groupCfg(config.MemberConfig{Entity: "device_tracker.phone"})
	cfg.RequireMovement = boolPtr(true)

	tests := []struct {
		name      string
		deltaLat  float64 // degrees north of the first fix
		wantEmits bool
	}{
		// 0.0001 deg latitude is ~11.1m: within the 15m combined radii.
		{"displacement within combined accuracy", 0.0001, false},
		// 0.0002 deg latitude is ~22.2m: beyond 15m.
		{"displacement beyond combined accuracy", 0.0002, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, cfg)
			h.start()

			h.bus.send(gpsState("device_tracker.phone", testAwayPoint, 10, at(0)))
			h.expectSighting()

			next := geo.Point{
				Latitude:  testAwayPoint.Latitude + tt.deltaLat,
				Longitude: testAwayPoint.Longitude,
			}
			h.bus.send(gpsState("device_tracker.phone", next, 5, at(60)))
			if tt.wantEmits {
				h.expectSighting()
			} else {
				h.expectNone()
			}
		})
	}
}

func TestScannerRejectsUnusableStates(t *testing.T) {
	h := newHarness(t, groupCfg(config.MemberConfig{Entity: "device_tracker.phone"}))
	h.start()

	for _, state := range []string{entity.StateUnknown, entity.StateUnavailable} {
		s := gpsState("device_tracker.phone", testAwayPoint, 10, at(0))
		s.State = state
		h.bus.send(s)
		h.expectNone()
	}
}

func TestScannerBackwardsSeenSuspendsMember(t *testing.T) {
	h := newHarness(t, groupCfg(
		config.MemberConfig{Entity: "device_tracker.phone"},
		config.MemberConfig{Entity: "device_tracker.watch"},
	))
	h.start()

	// Good first fix: member becomes active.
	h.bus.send(gpsState("device_tracker.phone", testAwayPoint, 10, at(100)))
	h.expectSighting()

	// First regression: warned. Second: suspended and unsubscribed.
	h.bus.send(gpsState("device_tracker.phone", testAwayPoint, 10, at(50)))
	h.expectNone()
	h.bus.send(gpsState("device_tracker.phone", testAwayPoint, 10, at(10)))
	h.expectNone()

	diags := h.sc.Diagnostics()
	if diags[0].Status != StatusSuspended {
		t.Errorf("phone status = %v, want suspended", diags[0].Status)
	}
	if h.bus.handlerCount("device_tracker.phone") != 0 {
		t.Error("suspended member still subscribed")
	}

	// The group keeps working through the remaining member.
	h.bus.send(gpsState("device_tracker.watch", testAwayPoint, 10, at(200)))
	s := h.expectSighting()
	if s.MemberID != "device_tracker.watch" {
		t.Errorf("sighting member = %s, want watch", s.MemberID)
	}
}

func TestScannerGPSPriorityOverNonGPS(t *testing.T) {
	h := newHarness(t, groupCfg(
		config.MemberConfig{Entity: "device_tracker.phone"},
		config.MemberConfig{Entity: "device_tracker.router"},
	))
	h.start()

	h.bus.send(gpsState("device_tracker.phone", testAwayPoint, 10, at(0)))
	h.expectSighting()

	// A router "not_home" is outranked by any GPS member. The member's
	// own bookkeeping still records the report.
	h.bus.send(routerState("device_tracker.router", entity.StateNotHome, at(60)))
	h.expectNone()

	diags := h.sc.Diagnostics()
	if diags[1].SourceKind != SourceRouter {
		t.Errorf("router bookkeeping source kind = %v, want router", diags[1].SourceKind)
	}
}

func TestScannerNonGPSDefersToOtherMemberHome(t *testing.T) {
	h := newHarness(t, groupCfg(
		config.MemberConfig{Entity: "device_tracker.router_a"},
		config.MemberConfig{Entity: "device_tracker.router_b"},
	))
	h.start()

	// A claims home.
	h.bus.send(routerState("device_tracker.router_a", entity.StateHome, at(0)))
	h.expectSighting()

	// B's not_home loses while A still claims home.
	h.bus.send(routerState("device_tracker.router_b", entity.StateNotHome, at(60)))
	h.expectNone()

	// Once A reports not_home too, a later not_home from B wins.
	h.bus.send(routerState("device_tracker.router_a", entity.StateNotHome, at(120)))
	h.expectSighting()
	h.bus.send(routerState("device_tracker.router_b", entity.StateNotHome, at(180)))
	s := h.expectSighting()
	if s.State != entity.StateNotHome {
		t.Errorf("state = %q, want not_home", s.State)
	}
}

func TestScannerAllStatesMemberAlwaysUsed(t *testing.T) {
	h := newHarness(t, groupCfg(
		config.MemberConfig{Entity: "device_tracker.phone"},
		config.MemberConfig{Entity: "device_tracker.router", AllStates: true},
	))
	h.start()

	h.bus.send(gpsState("device_tracker.phone", testAwayPoint, 10, at(0)))
	h.expectSighting()

	// all_states overrides GPS priority.
	h.bus.send(routerState("device_tracker.router", entity.StateNotHome, at(60)))
	h.expectSighting()
}

func TestScannerSynthesizesHomeLocation(t *testing.T) {
	h := newHarness(t, groupCfg(config.MemberConfig{Entity: "device_tracker.router"}))
	h.start()

	// Away first, so the previous fused state is not home.
	h.bus.send(routerState("device_tracker.router", entity.StateNotHome, at(0)))
	s := h.expectSighting()
	if s.Location != nil || s.LocationName != entity.StateNotHome {
		t.Fatalf("away sighting = %+v, want bare not_home", s)
	}

	// Arrival without coordinates synthesizes the configured home
	// location with perfect accuracy and becomes GPS-kind.
	h.bus.send(routerState("device_tracker.router", entity.StateHome, at(60)))
	s = h.expectSighting()
	if s.Location == nil {
		t.Fatal("arrival sighting has no location")
	}
	if s.Location.Point != testHomePoint || s.Location.Accuracy != 0 {
		t.Errorf("arrival location = %+v, want home center acc 0", s.Location)
	}
	if s.SourceKind != SourceGPS {
		t.Errorf("arrival source kind = %v, want gps", s.SourceKind)
	}
	if s.State != entity.StateHome {
		t.Errorf("arrival state = %q, want home", s.State)
	}
}

func TestScannerReusesFusedPositionInsideHome(t *testing.T) {
	h := newHarness(t, groupCfg(
		config.MemberConfig{Entity: "device_tracker.phone"},
		config.MemberConfig{Entity: "binary_sensor.bed"},
	))
	h.start()

	// GPS puts the composite just off the home center, inside the zone.
	gpsPoint := geo.Point{Latitude: 51.5001, Longitude: -0.1200}
	h.bus.send(gpsState("device_tracker.phone", gpsPoint, 12, at(0)))
	first := h.expectSighting()
	if first.State != entity.StateHome {
		t.Fatalf("gps sighting state = %q, want home", first.State)
	}

	// Binary presence "on" normalises to home and reuses the fused
	// position rather than snapping to the home center.
	bed := entity.State{
		EntityID:    "binary_sensor.bed",
		State:       entity.StateOn,
		Attributes:  entity.Attrs{"last_seen": at(60).Format(time.RFC3339)},
		LastUpdated: at(60),
	}
	h.bus.send(bed)
	s := h.expectSighting()
	if s.Location == nil || s.Location.Point != gpsPoint {
		t.Errorf("reused location = %+v, want %+v", s.Location, gpsPoint)
	}
	if s.Location.Accuracy != 12 {
		t.Errorf("reused accuracy = %v, want 12", s.Location.Accuracy)
	}
	if s.SourceKind != SourceGPS {
		t.Errorf("source kind = %v, want gps", s.SourceKind)
	}
}

func TestScannerStalenessGateAcrossMembers(t *testing.T) {
	h := newHarness(t, groupCfg(
		config.MemberConfig{Entity: "device_tracker.phone"},
		config.MemberConfig{Entity: "device_tracker.watch"},
	))
	h.start()

	h.bus.send(gpsState("device_tracker.phone", testAwayPoint, 10, at(120)))
	h.expectSighting()

	// The watch's first report is older than the fused state: no member
	// anomaly (it is its own first), but the group gate drops it.
	h.bus.send(gpsState("device_tracker.watch", testAwayPoint, 10, at(60)))
	h.expectNone()

	diags := h.sc.Diagnostics()
	if diags[1].Status != StatusActive {
		t.Errorf("watch status = %v, want active (stale is not an anomaly)", diags[1].Status)
	}
}

func TestScannerBootstrapPass(t *testing.T) {
	h := newHarness(t, groupCfg(config.MemberConfig{Entity: "device_tracker.phone"}))

	// State retained before the scanner starts.
	h.bus.setLatest(gpsState("device_tracker.phone", testAwayPoint, 10, at(0)))

	h.start()
	s := h.expectSighting()
	if s.MemberID != "device_tracker.phone" {
		t.Errorf("bootstrap sighting member = %s", s.MemberID)
	}
}

func TestScannerUnsupportedSourceKind(t *testing.T) {
	h := newHarness(t, groupCfg(config.MemberConfig{Entity: "device_tracker.phone"}))
	h.start()

	mystery := entity.State{
		EntityID:    "device_tracker.phone",
		State:       entity.StateNotHome,
		Attributes:  entity.Attrs{entity.AttrSourceType: "carrier_pigeon"},
		LastUpdated: at(0),
	}
	h.bus.send(mystery)
	h.expectNone()

	// Each unsupported report walks the anomaly ladder; the third
	// suspends the member.
	mystery.LastUpdated = at(60)
	h.bus.send(mystery)
	mystery.LastUpdated = at(120)
	h.bus.send(mystery)

	if got := h.sc.Diagnostics()[0].Status; got != StatusSuspended {
		t.Errorf("status = %v, want suspended", got)
	}
}

func TestScannerGPSWithoutSourceType(t *testing.T) {
	h := newHarness(t, groupCfg(config.MemberConfig{Entity: "device_tracker.phone"}))
	h.start()

	// Some trackers never set source_type; complete coordinates are
	// enough to treat the report as GPS.
	s := gpsState("device_tracker.phone", testAwayPoint, 10, at(0))
	delete(s.Attributes, entity.AttrSourceType)
	h.bus.send(s)

	got := h.expectSighting()
	if got.SourceKind != SourceGPS {
		t.Errorf("source kind = %v, want gps", got.SourceKind)
	}
	if got.Location == nil || got.Location.Point != testAwayPoint {
		t.Errorf("location = %v, want %v", got.Location, testAwayPoint)
	}
	if diag := h.sc.Diagnostics()[0]; diag.Status != StatusActive {
		t.Errorf("status = %v, want active", diag.Status)
	}
}

func TestScannerContributingMembers(t *testing.T) {
	h := newHarness(t, groupCfg(
		config.MemberConfig{Entity: "device_tracker.phone"},
		config.MemberConfig{Entity: "device_tracker.router"},
	))
	h.start()

	h.bus.send(gpsState("device_tracker.phone", testAwayPoint, 10, at(0)))
	s := h.expectSighting()
	if len(s.Members) != 1 || s.Members[0] != "device_tracker.phone" {
		t.Errorf("members = %v, want just phone", s.Members)
	}

	h.bus.send(routerState("device_tracker.router", entity.StateHome, at(60)))
	s = h.expectSighting()
	if len(s.Members) != 2 {
		t.Errorf("members = %v, want both after router reported", s.Members)
	}
}

func TestScannerPictureProvider(t *testing.T) {
	h := newHarness(t, groupCfg(
		config.MemberConfig{Entity: "device_tracker.phone", UsePicture: true},
		config.MemberConfig{Entity: "device_tracker.watch"},
	))
	h.start()

	s := gpsState("device_tracker.phone", testAwayPoint, 10, at(0))
	s.Attributes[attrEntityPicture] = "/local/anna.png"
	h.bus.send(s)
	got := h.expectSighting()
	if got.Picture != "/local/anna.png" {
		t.Errorf("picture = %q, want member picture", got.Picture)
	}

	// Non-picture members never carry one.
	h.bus.send(gpsState("device_tracker.watch", testAwayPoint, 10, at(60)))
	got = h.expectSighting()
	if got.Picture != "" {
		t.Errorf("picture = %q, want empty from non-provider", got.Picture)
	}
}

func TestScannerCloseStopsCallbacks(t *testing.T) {
	h := newHarness(t, groupCfg(config.MemberConfig{Entity: "device_tracker.phone"}))
	h.start()

	h.sc.Close()
	h.sc.Close() // idempotent

	h.bus.send(gpsState("device_tracker.phone", testAwayPoint, 10, at(0)))
	h.expectNone()
}

func TestScannerTimeAsFormatting(t *testing.T) {
	cfg := groupCfg(config.MemberConfig{Entity: "device_tracker.phone"})
	cfg.TimeAs = config.TimeAsDeviceUTC

	h := newHarness(t, cfg)
	h.start()

	seen := at(0).Add(400 * time.Millisecond) // rounds to nearest second
	h.bus.send(gpsState("device_tracker.phone", testAwayPoint, 10, seen))
	s := h.expectSighting()

	if s.ObservedAtDisplay != at(0).Format(time.RFC3339) {
		t.Errorf("display = %q, want rounded %q", s.ObservedAtDisplay, at(0).Format(time.RFC3339))
	}
	// FixedTimezoneFinder resolves everything to UTC.
	if s.TimeZone != "UTC" {
		t.Errorf("time zone = %q, want UTC", s.TimeZone)
	}
}
