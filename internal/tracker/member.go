package tracker

import (
	"time"
)

// member is the per-source bookkeeping the scanner maintains. It is only
// ever read or written under the scanner's group mutex.
type member struct {
	entityID   string
	allStates  bool
	usePicture bool

	status MemberStatus

	// lastSeen is zero until the first accepted update;
	// monotonically non-decreasing afterwards.
	lastSeen   time.Time
	sourceKind SourceKind

	// Last accepted payload: loc for GPS members, state for the rest.
	loc   *Location
	state string

	// picture is the member's last reported entity_picture, tracked only
	// for the group's picture-providing member.
	picture string

	unsubscribe func()
}

// good marks the member as producing usable data, clearing a prior warning.
func (m *member) good() {
	m.status = StatusActive
}

// record stores the accepted payload and advances lastSeen.
func (m *member) record(lastSeen time.Time, kind SourceKind, loc *Location, state string) {
	m.lastSeen = lastSeen
	m.sourceKind = kind
	m.loc = loc
	m.state = state
}

// bad advances the member one step down the anomaly ladder and reports
// whether it should now be suspended.
//
// The first anomaly on an inactive member is treated as initial noise:
// the member becomes active without complaint. An active member is warned,
// a warned member is suspended and excluded from the group.
func (m *member) bad() (suspend bool) {
	switch m.status {
	case StatusInactive:
		m.status = StatusActive
		return false
	case StatusActive:
		m.status = StatusWarned
		return false
	default:
		m.status = StatusSuspended
		return true
	}
}
