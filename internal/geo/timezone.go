package geo

import (
	"fmt"
	"sync"
	"time"

	"github.com/ringsaturn/tzf"
)

// TimezoneFinder resolves a coordinate to an IANA timezone location.
// Implementations must be safe for concurrent use.
type TimezoneFinder interface {
	// TimezoneAt returns the IANA timezone for the given point, or an
	// error if the point cannot be resolved.
	TimezoneAt(p Point) (*time.Location, error)
}

// tzfFinder implements TimezoneFinder using the embedded tzf dataset.
type tzfFinder struct {
	finder tzf.F

	// cache avoids repeated time.LoadLocation calls for the same name.
	cache map[string]*time.Location
	mu    sync.RWMutex
}

// NewTimezoneFinder creates a TimezoneFinder backed by the tzf library's
// embedded timezone boundary data. Construction parses the dataset once;
// reuse the returned finder for all lookups.
//
// Returns:
//   - TimezoneFinder: Ready-to-use finder
//   - error: If the embedded dataset fails to load
func NewTimezoneFinder() (TimezoneFinder, error) {
	finder, err := tzf.NewDefaultFinder()
	if err != nil {
		return nil, fmt.Errorf("loading timezone data: %w", err)
	}
	return &tzfFinder{
		finder: finder,
		cache:  make(map[string]*time.Location),
	}, nil
}

// TimezoneAt resolves the point to an IANA timezone location.
func (f *tzfFinder) TimezoneAt(p Point) (*time.Location, error) {
	name := f.finder.GetTimezoneName(p.Longitude, p.Latitude)
	if name == "" {
		return nil, fmt.Errorf("no timezone found for %.5f,%.5f", p.Latitude, p.Longitude)
	}

	f.mu.RLock()
	loc, ok := f.cache[name]
	f.mu.RUnlock()
	if ok {
		return loc, nil
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", name, err)
	}

	f.mu.Lock()
	f.cache[name] = loc
	f.mu.Unlock()

	return loc, nil
}

// FixedTimezoneFinder returns every point as the given location.
// Intended for tests and for deployments that disable coordinate lookup.
type FixedTimezoneFinder struct {
	Location *time.Location
}

// TimezoneAt returns the fixed location regardless of the point.
func (f FixedTimezoneFinder) TimezoneAt(Point) (*time.Location, error) {
	if f.Location == nil {
		return time.UTC, nil
	}
	return f.Location, nil
}
