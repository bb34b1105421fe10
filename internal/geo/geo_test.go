package geo

import (
	"math"
	"testing"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name    string
		a, b    Point
		wantM   float64
		tolMtrs float64
	}{
		{
			name:    "same point",
			a:       Point{Latitude: 51.5007, Longitude: -0.1246},
			b:       Point{Latitude: 51.5007, Longitude: -0.1246},
			wantM:   0,
			tolMtrs: 0.01,
		},
		{
			name:    "big ben to london eye",
			a:       Point{Latitude: 51.5007, Longitude: -0.1246},
			b:       Point{Latitude: 51.5033, Longitude: -0.1196},
			wantM:   450,
			tolMtrs: 20,
		},
		{
			name:    "london to paris",
			a:       Point{Latitude: 51.5074, Longitude: -0.1278},
			b:       Point{Latitude: 48.8566, Longitude: 2.3522},
			wantM:   343500,
			tolMtrs: 1000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.a, tt.b)
			if math.Abs(got-tt.wantM) > tt.tolMtrs {
				t.Errorf("Distance() = %.1f m, want %.1f ± %.1f m", got, tt.wantM, tt.tolMtrs)
			}
		})
	}
}

func TestDistanceSymmetry(t *testing.T) {
	a := Point{Latitude: 51.5007, Longitude: -0.1246}
	b := Point{Latitude: 48.8566, Longitude: 2.3522}

	ab := Distance(a, b)
	ba := Distance(b, a)
	if math.Abs(ab-ba) > 1e-6 {
		t.Errorf("Distance not symmetric: %f vs %f", ab, ba)
	}
}

func TestAngle(t *testing.T) {
	origin := Point{Latitude: 50.0, Longitude: 10.0}

	tests := []struct {
		name string
		to   Point
		want float64
	}{
		{"due north", Point{Latitude: 51.0, Longitude: 10.0}, 0},
		{"due east", Point{Latitude: 50.0, Longitude: 11.0}, 90},
		{"due south", Point{Latitude: 49.0, Longitude: 10.0}, 180},
		{"due west", Point{Latitude: 50.0, Longitude: 9.0}, 270},
		{"north-east", Point{Latitude: 51.0, Longitude: 11.0}, 45},
		{"south-west", Point{Latitude: 49.0, Longitude: 9.0}, 225},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Angle(origin, tt.to)
			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("Angle() = %.3f, want %.3f", got, tt.want)
			}
		})
	}
}

func TestAngleAlwaysInRange(t *testing.T) {
	origin := Point{Latitude: 50.0, Longitude: 10.0}
	for lat := 49.0; lat <= 51.0; lat += 0.5 {
		for lon := 9.0; lon <= 11.0; lon += 0.5 {
			if lat == origin.Latitude && lon == origin.Longitude {
				continue
			}
			got := Angle(origin, Point{Latitude: lat, Longitude: lon})
			if got < 0 || got >= 360 {
				t.Errorf("Angle to (%.1f, %.1f) = %.3f, out of [0, 360)", lat, lon, got)
			}
		}
	}
}

func TestFixedTimezoneFinder(t *testing.T) {
	f := FixedTimezoneFinder{}
	loc, err := f.TimezoneAt(Point{Latitude: 51.5, Longitude: -0.12})
	if err != nil {
		t.Fatalf("TimezoneAt() error = %v", err)
	}
	if loc.String() != "UTC" {
		t.Errorf("TimezoneAt() = %s, want UTC", loc)
	}
}
