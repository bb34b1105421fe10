package zone

import (
	"sync"

	"github.com/nerrad567/gray-logic-presence/internal/geo"
)

// Registry holds the active zone set and answers point-in-zone queries.
//
// Thread Safety: all methods are safe for concurrent use. The zone set
// is replaced wholesale via Replace, never mutated in place.
type Registry struct {
	mu    sync.RWMutex
	zones []Zone
}

// NewRegistry creates a registry with the given initial zone set.
func NewRegistry(zones []Zone) *Registry {
	r := &Registry{}
	r.Replace(zones)
	return r
}

// Replace swaps the entire zone set.
func (r *Registry) Replace(zones []Zone) {
	copied := make([]Zone, len(zones))
	copy(copied, zones)

	r.mu.Lock()
	r.zones = copied
	r.mu.Unlock()
}

// All returns a copy of the current zone set.
func (r *Registry) All() []Zone {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Zone, len(r.zones))
	copy(out, r.zones)
	return out
}

// Home returns the home zone, if one is registered.
func (r *Registry) Home() (Zone, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, z := range r.zones {
		if z.IsHome() {
			return z, true
		}
	}
	return Zone{}, false
}

// BySlug returns the zone with the given slug.
func (r *Registry) BySlug(slug string) (Zone, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, z := range r.zones {
		if z.Slug == slug {
			return z, true
		}
	}
	return Zone{}, false
}

// ActiveZone returns the zone containing the point, if any.
//
// When several zones contain the point, the one whose center is nearest
// wins; ties break toward the smaller radius. Passive zones never match.
//
// Parameters:
//   - p: Coordinate to test
//   - accuracy: GPS accuracy radius in metres (0 for exact points)
//
// Returns:
//   - Zone: The matched zone
//   - bool: false if no zone contains the point
func (r *Registry) ActiveZone(p geo.Point, accuracy float64) (Zone, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		best     Zone
		bestDist float64
		found    bool
	)
	for _, z := range r.zones {
		if z.Passive || !z.Contains(p, accuracy) {
			continue
		}
		dist := geo.Distance(z.Center(), p)
		closer := dist < bestDist || (dist == bestDist && z.Radius < best.Radius)
		if !found || closer {
			best = z
			bestDist = dist
			found = true
		}
	}
	return best, found
}

// StateFor resolves a coordinate to the state string a tracker should
// report: "home" for the home zone, the zone's friendly name for other
// zones, and "not_home" when no zone matches.
func (r *Registry) StateFor(p geo.Point, accuracy float64) string {
	z, ok := r.ActiveZone(p, accuracy)
	if !ok {
		return StateNotHome
	}
	if z.IsHome() {
		return StateHome
	}
	return z.Name
}

// Tracker state strings produced by zone resolution.
const (
	StateHome    = "home"
	StateNotHome = "not_home"
)
