package tracker

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-presence/internal/entity"
	"github.com/nerrad567/gray-logic-presence/internal/geo"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-presence/internal/scheduler"
	"github.com/nerrad567/gray-logic-presence/internal/zone"
)

// timeZoneUnknown is the sentinel when a device timezone cannot be resolved.
const timeZoneUnknown = "unknown"

// attrEntityPicture is the attribute a picture-providing member exposes
// its display picture under.
const attrEntityPicture = "entity_picture"

// SightingFunc receives each accepted sighting. Invocations are scheduled
// onto the loop, never made while the scanner's group mutex is held by
// the caller's goroutine... they run after the reconciliation that
// produced them, in acceptance order.
type SightingFunc func(s Sighting)

// Scanner is the per-group fusion engine.
//
// It subscribes to state changes for the group's members, reconciles each
// change against the group's current fused state under a single mutex,
// and emits a Sighting through the callback when an update is accepted.
//
// Reconciliation runs on the bus's delivery goroutines; accepted sightings
// are handed to the scheduler loop fire-and-continue so a slow consumer
// can never deadlock against the group mutex.
type Scanner struct {
	cfg       config.GroupConfig
	bus       entity.Bus
	zones     *zone.Registry
	loop      *scheduler.Loop
	timezones geo.TimezoneFinder
	logger    Logger
	callback  SightingFunc

	mu      sync.Mutex
	members map[string]*member
	order   []string

	// prev is the group's last accepted sighting; prevSeen its lastSeen
	// candidate, used by the staleness gate.
	prev     *Sighting
	prevSeen time.Time

	closed    bool
	closeOnce sync.Once
}

// NewScanner creates the fusion engine for one group.
//
// Parameters:
//   - cfg: Group configuration (members, require_movement, time_as, ...)
//   - bus: State-change source for member entities
//   - zones: Zone registry for point-in-zone resolution
//   - loop: Scheduler loop the zone bridge and callback run on
//   - timezones: Coordinate-to-timezone resolver for device time-as modes
//   - logger: Logger (nil for silent)
//   - callback: Receives each accepted sighting on the loop
//
// Returns:
//   - *Scanner: Engine ready for Start
//   - error: If the configuration is unusable
func NewScanner(
	cfg config.GroupConfig,
	bus entity.Bus,
	zones *zone.Registry,
	loop *scheduler.Loop,
	timezones geo.TimezoneFinder,
	logger Logger,
	callback SightingFunc,
) (*Scanner, error) {
	if len(cfg.Members) == 0 {
		return nil, fmt.Errorf("group %s: %w", cfg.ID, ErrNoMembers)
	}
	if callback == nil {
		return nil, fmt.Errorf("group %s: callback is required", cfg.ID)
	}
	if logger == nil {
		logger = noopLogger{}
	}

	sc := &Scanner{
		cfg:       cfg,
		bus:       bus,
		zones:     zones,
		loop:      loop,
		timezones: timezones,
		logger:    logger,
		callback:  callback,
		members:   make(map[string]*member, len(cfg.Members)),
	}
	for _, mc := range cfg.Members {
		if _, dup := sc.members[mc.Entity]; dup {
			return nil, fmt.Errorf("group %s: duplicate member %s", cfg.ID, mc.Entity)
		}
		sc.members[mc.Entity] = &member{
			entityID:   mc.Entity,
			allStates:  mc.AllStates,
			usePicture: mc.UsePicture,
			status:     StatusInactive,
		}
		sc.order = append(sc.order, mc.Entity)
	}
	return sc, nil
}

// Start subscribes to all members and runs the bootstrap pass: each
// member's currently-known state is fed through reconciliation so
// consumers observe an initial fused state without waiting for the next
// external event.
//
// Returns:
//   - error: If any subscription fails (already-made subscriptions are
//     released)
func (sc *Scanner) Start() error {
	for _, id := range sc.order {
		m := sc.members[id]
		entityID := id
		unsub, err := sc.bus.Subscribe(entityID, func(s entity.State) {
			sc.handle(entityID, s)
		})
		if err != nil {
			sc.unsubscribeAll()
			return fmt.Errorf("subscribing to %s: %w", entityID, err)
		}
		m.unsubscribe = unsub
	}

	// Bootstrap: process retained states that arrived before we subscribed.
	for _, id := range sc.order {
		if s, ok := sc.bus.Latest(id); ok {
			sc.handle(id, s)
		}
	}
	return nil
}

// handle is the subscription entry point: it serialises reconciliation
// for this group under the mutex.
func (sc *Scanner) handle(entityID string, s entity.State) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.closed {
		return
	}
	sc.process(entityID, s)
}

// process implements the per-event reconciliation algorithm. Callers must
// hold sc.mu.
func (sc *Scanner) process(entityID string, s entity.State) {
	m := sc.members[entityID]
	if m == nil || m.status == StatusSuspended {
		return
	}

	// 1. Placeholder states carry no usable data.
	if !s.Usable() {
		return
	}

	// 2. Determine the lastSeen candidate.
	lastSeen := s.LastSeen()

	// 3. A sighting older than what this member already reported is an
	// anomaly: the source is replaying or its clock went backwards.
	if !m.lastSeen.IsZero() && lastSeen.Before(m.lastSeen) {
		sc.markBad(m, fmt.Sprintf("reported last_seen %s older than previous %s",
			lastSeen.Format(time.RFC3339), m.lastSeen.Format(time.RFC3339)))
		return
	}

	// 4. Extract optional payload fields.
	loc := extractLocation(s.Attributes)
	battery := extractBattery(s.Attributes)
	charging := extractCharging(s.Attributes)
	if m.usePicture {
		if pic, ok := s.Attributes.String(attrEntityPicture); ok {
			m.picture = pic
		}
	}

	// 5-8. Dispatch on source kind.
	switch kind := classifySource(s, loc); kind {
	case SourceGPS:
		sc.processGPS(m, s, lastSeen, loc, battery, charging)
	case SourceBinaryPresence, SourceRouter, SourceBluetooth, SourceBluetoothLE:
		sc.processNonGPS(m, kind, s, lastSeen, loc, battery, charging)
	default:
		sc.markBad(m, fmt.Sprintf("unsupported source type %q", kind))
	}
}

// processGPS handles the GPS branch: coordinates and accuracy are
// mandatory, duplicates are dropped, and require_movement gates jitter.
func (sc *Scanner) processGPS(m *member, s entity.State, lastSeen time.Time, loc *Location, battery *float64, charging *bool) {
	if loc == nil {
		sc.markBad(m, "gps update without complete location data")
		return
	}

	// Same sighting time with an identical payload is a duplicate delivery.
	if m.loc != nil && lastSeen.Equal(m.lastSeen) && *m.loc == *loc {
		sc.logger.Debug("dropping duplicate gps update",
			"group", sc.cfg.ID, "member", m.entityID)
		return
	}

	prevLoc := m.loc
	m.good()
	m.record(lastSeen, SourceGPS, loc, "")

	// With require_movement a displacement within the combined accuracy
	// radii cannot be distinguished from jitter. The member bookkeeping
	// above still stands; only the fused output is withheld.
	if sc.requireMovement() && prevLoc != nil {
		dist := geo.Distance(prevLoc.Point, loc.Point)
		if dist <= loc.Accuracy+prevLoc.Accuracy {
			sc.logger.Debug("dropping gps update within accuracy radii",
				"group", sc.cfg.ID, "member", m.entityID,
				"distance_m", dist, "combined_accuracy_m", loc.Accuracy+prevLoc.Accuracy)
			return
		}
	}

	sc.emit(m, lastSeen, SourceGPS, loc, "", battery, charging)
}

// processNonGPS handles presence-style sources: binary on/off is
// normalised to home/not_home, authority is decided against the rest of
// the group, and geometry is derived so the output always carries either
// coordinates or a location name.
func (sc *Scanner) processNonGPS(m *member, kind SourceKind, s entity.State, lastSeen time.Time, loc *Location, battery *float64, charging *bool) {
	state := s.State
	if kind == SourceBinaryPresence {
		switch state {
		case entity.StateOn:
			state = entity.StateHome
		case entity.StateOff:
			state = entity.StateNotHome
		}
	}

	m.good()
	m.record(lastSeen, kind, nil, state)

	if !sc.shouldUseNonGPSData(m, state) {
		return
	}

	// Derive geometry. Bare state strings trip the stale-data suppression
	// downstream, so prefer coordinates whenever any are defensible.
	emitKind := kind
	var emitLoc *Location
	locationName := ""
	switch {
	case state == entity.StateHome && sc.prevInHomeZone():
		// The fused position already sits inside the home zone; reuse it.
		emitLoc = sc.prev.Location
		emitKind = SourceGPS

	case loc != nil:
		// The event itself carried a complete coordinate payload.
		emitLoc = loc
		emitKind = SourceGPS

	case state == entity.StateHome && (sc.prev == nil || sc.prev.State != entity.StateHome):
		// Arrival without coordinates: stand in the configured home
		// location with perfect accuracy.
		if home, ok := sc.homeZone(); ok {
			emitLoc = &Location{Point: home.Center(), Accuracy: 0}
			emitKind = SourceGPS
		} else {
			locationName = state
		}

	default:
		locationName = state
	}

	sc.emit(m, lastSeen, emitKind, emitLoc, locationName, battery, charging)
}

// shouldUseNonGPSData decides whether a presence-style report is
// authoritative for the fused output.
//
// "home" reports and all_states members always are. Otherwise GPS members
// outrank presence sources entirely, and a "not_home" style report only
// wins when no other presence member still claims "home".
func (sc *Scanner) shouldUseNonGPSData(m *member, state string) bool {
	if state == entity.StateHome || m.allStates {
		return true
	}
	for _, id := range sc.order {
		o := sc.members[id]
		if o == m || o.status == StatusSuspended {
			continue
		}
		if o.sourceKind == SourceGPS {
			return false
		}
	}
	for _, id := range sc.order {
		o := sc.members[id]
		if o == m || o.status == StatusSuspended {
			continue
		}
		if o.sourceKind != "" && o.sourceKind != SourceGPS && o.state == entity.StateHome {
			return false
		}
	}
	return true
}

// emit applies the group staleness gate, builds the sighting, and hands
// it to the loop. Callers must hold sc.mu.
func (sc *Scanner) emit(m *member, lastSeen time.Time, kind SourceKind, loc *Location, locationName string, battery *float64, charging *bool) {
	// 9. A sighting that is not strictly newer than the group's previous
	// one would regress the fused state; out-of-order delivery across
	// members is expected and harmless.
	if !sc.prevSeen.IsZero() && !lastSeen.After(sc.prevSeen) {
		sc.logger.Debug("dropping stale sighting",
			"group", sc.cfg.ID, "member", m.entityID,
			"last_seen", lastSeen.Format(time.RFC3339),
			"previous", sc.prevSeen.Format(time.RFC3339))
		return
	}

	// 10. Resolve the presence state and display attributes.
	state := locationName
	if state == "" && loc != nil {
		state = sc.stateFor(loc)
	}
	if state == "" {
		state = entity.StateNotHome
	}

	display, tzName := sc.formatObservedAt(lastSeen, loc)

	var contributing []string
	for _, id := range sc.order {
		if sc.members[id].sourceKind != "" {
			contributing = append(contributing, id)
		}
	}
	sort.Strings(contributing)

	sighting := Sighting{
		GroupID:           sc.cfg.ID,
		MemberID:          m.entityID,
		State:             state,
		LocationName:      locationName,
		Location:          loc,
		BatteryLevel:      battery,
		BatteryCharging:   charging,
		SourceKind:        kind,
		ObservedAt:        lastSeen,
		ObservedAtDisplay: display,
		TimeZone:          tzName,
		Members:           contributing,
	}
	if m.usePicture && m.picture != "" {
		sighting.Picture = m.picture
	}

	sc.prev = &sighting
	sc.prevSeen = lastSeen

	// Fire-and-continue onto the loop: the callback must never run while
	// this goroutine holds the group mutex.
	cb := sc.callback
	if err := sc.loop.Submit(func() { cb(sighting) }); err != nil {
		sc.logger.Warn("dropping sighting, scheduler closed",
			"group", sc.cfg.ID, "member", m.entityID)
	}
}

// markBad records an anomaly against the member and suspends it after
// repeated failures, unsubscribing its state feed. Callers must hold sc.mu.
func (sc *Scanner) markBad(m *member, reason string) {
	prev := m.status
	if !m.bad() {
		switch prev {
		case StatusInactive:
			sc.logger.Debug("ignoring initial bad data",
				"group", sc.cfg.ID, "member", m.entityID, "reason", reason)
		default:
			sc.logger.Warn("member reported bad data",
				"group", sc.cfg.ID, "member", m.entityID, "reason", reason)
		}
		return
	}

	sc.logger.Error("suspending member after repeated bad data",
		"group", sc.cfg.ID, "member", m.entityID, "reason", reason)
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

// prevInHomeZone reports whether the group's last fused position falls
// inside the home zone. Callers must hold sc.mu.
func (sc *Scanner) prevInHomeZone() bool {
	if sc.prev == nil || sc.prev.Location == nil {
		return false
	}
	loc := sc.prev.Location
	var inHome bool
	err := sc.loop.Call(func() {
		z, ok := sc.zones.ActiveZone(loc.Point, loc.Accuracy)
		inHome = ok && z.IsHome()
	})
	if err != nil {
		return false
	}
	return inHome
}

// stateFor resolves coordinates to a presence state via the zone bridge.
func (sc *Scanner) stateFor(loc *Location) string {
	var state string
	err := sc.loop.Call(func() {
		state = sc.zones.StateFor(loc.Point, loc.Accuracy)
	})
	if err != nil {
		return entity.StateNotHome
	}
	return state
}

// homeZone fetches the home zone via the zone bridge.
func (sc *Scanner) homeZone() (zone.Zone, bool) {
	var (
		z  zone.Zone
		ok bool
	)
	if err := sc.loop.Call(func() {
		z, ok = sc.zones.Home()
	}); err != nil {
		return zone.Zone{}, false
	}
	return z, ok
}

// formatObservedAt renders the sighting time per the group's time-as mode.
// The returned timezone name is empty for non-device modes and "unknown"
// when device timezone resolution fails.
func (sc *Scanner) formatObservedAt(t time.Time, loc *Location) (display, tzName string) {
	rounded := t.Round(time.Second)

	switch sc.cfg.TimeAs {
	case config.TimeAsLocal:
		return rounded.Local().Format(time.RFC3339), ""
	case config.TimeAsDeviceUTC, config.TimeAsDeviceLocal:
		if loc != nil && sc.timezones != nil {
			if tz, err := sc.timezones.TimezoneAt(loc.Point); err == nil {
				return rounded.In(tz).Format(time.RFC3339), tz.String()
			}
		}
		if sc.cfg.TimeAs == config.TimeAsDeviceLocal {
			return rounded.Local().Format(time.RFC3339), timeZoneUnknown
		}
		return rounded.UTC().Format(time.RFC3339), timeZoneUnknown
	default:
		return rounded.UTC().Format(time.RFC3339), ""
	}
}

// requireMovement resolves the group's require_movement flag.
func (sc *Scanner) requireMovement() bool {
	return sc.cfg.RequireMovement != nil && *sc.cfg.RequireMovement
}

// Diagnostics returns a point-in-time view of every member's bookkeeping.
// Safe to call from any goroutine.
func (sc *Scanner) Diagnostics() []MemberDiagnostic {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	out := make([]MemberDiagnostic, 0, len(sc.order))
	for _, id := range sc.order {
		m := sc.members[id]
		d := MemberDiagnostic{
			EntityID:   m.entityID,
			Status:     m.status,
			SourceKind: m.sourceKind,
			AllStates:  m.allStates,
			UsePicture: m.usePicture,
		}
		if !m.lastSeen.IsZero() {
			seen := m.lastSeen
			d.LastSeen = &seen
		}
		out = append(out, d)
	}
	return out
}

// MemberDiagnostic is the API-facing view of one member's state.
type MemberDiagnostic struct {
	EntityID   string       `json:"entity_id"`
	Status     MemberStatus `json:"status"`
	SourceKind SourceKind   `json:"source_kind,omitempty"`
	LastSeen   *time.Time   `json:"last_seen,omitempty"`
	AllStates  bool         `json:"all_states,omitempty"`
	UsePicture bool         `json:"use_picture,omitempty"`
}

// Close shuts the scanner down: unsubscribe first so no new events arrive,
// then drain any reconciliation already holding the mutex. No callback is
// scheduled after Close returns. Safe to call multiple times.
func (sc *Scanner) Close() {
	sc.closeOnce.Do(func() {
		sc.unsubscribeAll()
		sc.mu.Lock()
		sc.closed = true
		sc.mu.Unlock()
	})
}

// unsubscribeAll releases every member subscription.
func (sc *Scanner) unsubscribeAll() {
	for _, id := range sc.order {
		m := sc.members[id]
		if m.unsubscribe != nil {
			m.unsubscribe()
			m.unsubscribe = nil
		}
	}
}

// extractLocation pulls a complete coordinate payload from the attributes.
// Latitude, longitude, and accuracy are required together; a partial
// payload yields nil.
func extractLocation(a entity.Attrs) *Location {
	lat, okLat := a.Float(entity.AttrsLatitude...)
	lon, okLon := a.Float(entity.AttrsLongitude...)
	acc, okAcc := a.Float(entity.AttrsGPSAccuracy...)
	if !okLat || !okLon || !okAcc {
		return nil
	}
	return &Location{
		Point:    geo.Point{Latitude: lat, Longitude: lon},
		Accuracy: acc,
	}
}

// extractBattery pulls the battery level, nil when absent.
func extractBattery(a entity.Attrs) *float64 {
	if lvl, ok := a.Float(entity.AttrsBatteryLevel...); ok {
		return &lvl
	}
	return nil
}

// extractCharging pulls the charging flag, nil when absent.
func extractCharging(a entity.Attrs) *bool {
	if c, ok := a.Bool(entity.AttrsBatteryCharging...); ok {
		return &c
	}
	return nil
}
