package zone

import (
	"time"

	"github.com/nerrad567/gray-logic-presence/internal/geo"
)

// HomeSlug identifies the home zone. Trackers inside it report the
// "home" state rather than the zone's friendly name.
const HomeSlug = "home"

// DefaultHomeRadiusM is the radius used when seeding the home zone from
// the site location without an explicit radius.
const DefaultHomeRadiusM = 100

// Zone is a named circular region. Coordinates that fall inside it are
// reported using the zone's name instead of raw numbers.
type Zone struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Radius    float64   `json:"radius"`
	Passive   bool      `json:"passive"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Center returns the zone's center coordinate.
func (z *Zone) Center() geo.Point {
	return geo.Point{Latitude: z.Latitude, Longitude: z.Longitude}
}

// IsHome reports whether this is the home zone.
func (z *Zone) IsHome() bool {
	return z.Slug == HomeSlug
}

// Contains reports whether a point with the given GPS accuracy radius
// falls inside the zone. A point counts as inside when any part of its
// accuracy circle overlaps the zone.
func (z *Zone) Contains(p geo.Point, accuracy float64) bool {
	return geo.Distance(z.Center(), p)-accuracy < z.Radius
}
