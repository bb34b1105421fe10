package zone

import (
	"testing"

	"github.com/nerrad567/gray-logic-presence/internal/geo"
)

func testZones() []Zone {
	return []Zone{
		{
			ID: "z-home", Name: "Home", Slug: HomeSlug,
			Latitude: 51.5000, Longitude: -0.1200, Radius: 100,
		},
		{
			ID: "z-office", Name: "Office", Slug: "office",
			Latitude: 51.5100, Longitude: -0.1300, Radius: 50,
		},
		{
			ID: "z-gym", Name: "Gym", Slug: "gym", Passive: true,
			Latitude: 51.5200, Longitude: -0.1400, Radius: 50,
		},
	}
}

func TestRegistryActiveZone(t *testing.T) {
	r := NewRegistry(testZones())

	tests := []struct {
		name     string
		point    geo.Point
		accuracy float64
		wantSlug string
		wantOK   bool
	}{
		{
			name:     "at home center",
			point:    geo.Point{Latitude: 51.5000, Longitude: -0.1200},
			wantSlug: HomeSlug, wantOK: true,
		},
		{
			name:     "at office center",
			point:    geo.Point{Latitude: 51.5100, Longitude: -0.1300},
			wantSlug: "office", wantOK: true,
		},
		{
			name:   "nowhere near any zone",
			point:  geo.Point{Latitude: 52.0, Longitude: -1.0},
			wantOK: false,
		},
		{
			name:     "outside radius but accuracy circle overlaps",
			point:    geo.Point{Latitude: 51.5012, Longitude: -0.1200}, // ~133m north of home
			accuracy: 50,
			wantSlug: HomeSlug, wantOK: true,
		},
		{
			name:   "passive zone never matches",
			point:  geo.Point{Latitude: 51.5200, Longitude: -0.1400},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			z, ok := r.ActiveZone(tt.point, tt.accuracy)
			if ok != tt.wantOK {
				t.Fatalf("ActiveZone() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && z.Slug != tt.wantSlug {
				t.Errorf("ActiveZone() slug = %q, want %q", z.Slug, tt.wantSlug)
			}
		})
	}
}

func TestRegistryNearestZoneWins(t *testing.T) {
	// Two overlapping zones; the point sits closer to the small one.
	r := NewRegistry([]Zone{
		{ID: "big", Name: "Big", Slug: "big", Latitude: 51.5000, Longitude: -0.1200, Radius: 500},
		{ID: "small", Name: "Small", Slug: "small", Latitude: 51.5010, Longitude: -0.1200, Radius: 80},
	})

	z, ok := r.ActiveZone(geo.Point{Latitude: 51.5011, Longitude: -0.1200}, 0)
	if !ok {
		t.Fatal("ActiveZone() should match")
	}
	if z.Slug != "small" {
		t.Errorf("ActiveZone() = %q, want nearest zone small", z.Slug)
	}
}

func TestRegistryStateFor(t *testing.T) {
	r := NewRegistry(testZones())

	tests := []struct {
		name  string
		point geo.Point
		want  string
	}{
		{"home zone", geo.Point{Latitude: 51.5000, Longitude: -0.1200}, StateHome},
		{"named zone uses friendly name", geo.Point{Latitude: 51.5100, Longitude: -0.1300}, "Office"},
		{"no zone", geo.Point{Latitude: 52.0, Longitude: -1.0}, StateNotHome},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.StateFor(tt.point, 0); got != tt.want {
				t.Errorf("StateFor() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRegistryHome(t *testing.T) {
	r := NewRegistry(testZones())
	home, ok := r.Home()
	if !ok || home.ID != "z-home" {
		t.Errorf("Home() = %v, %v; want z-home", home.ID, ok)
	}

	r.Replace(nil)
	if _, ok := r.Home(); ok {
		t.Error("Home() found a zone after Replace(nil)")
	}
}

func TestValidate(t *testing.T) {
	valid := Zone{Name: "Home", Slug: "home", Latitude: 51.5, Longitude: -0.12, Radius: 100}
	if err := Validate(&valid); err != nil {
		t.Errorf("Validate() error = %v for valid zone", err)
	}

	tests := []struct {
		name   string
		mutate func(*Zone)
	}{
		{"missing name", func(z *Zone) { z.Name = "" }},
		{"missing slug", func(z *Zone) { z.Slug = "" }},
		{"latitude out of range", func(z *Zone) { z.Latitude = 91 }},
		{"longitude out of range", func(z *Zone) { z.Longitude = -181 }},
		{"zero radius", func(z *Zone) { z.Radius = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			z := valid
			tt.mutate(&z)
			if err := Validate(&z); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}
