package geo

import "math"

// earthRadiusM is the mean Earth radius in metres, used by the haversine
// distance calculation.
const earthRadiusM = 6371000

// degreesFullCircle normalises negative bearings into the 0-360 range.
const degreesFullCircle = 360

// Point is a WGS84 coordinate pair in decimal degrees.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Distance returns the great-circle distance between two points in metres,
// computed with the haversine formula.
//
// Parameters:
//   - a, b: Coordinate pairs in decimal degrees
//
// Returns:
//   - float64: Distance in metres
func Distance(a, b Point) float64 {
	lat1 := radians(a.Latitude)
	lat2 := radians(b.Latitude)
	dLat := radians(b.Latitude - a.Latitude)
	dLon := radians(b.Longitude - a.Longitude)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)

	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	return 2 * earthRadiusM * math.Asin(math.Sqrt(h))
}

// Angle returns the direction of travel from a to b in degrees, normalised
// to [0, 360). North is 0, east is 90.
//
// This uses a flat-plane approximation: atan2 over the raw coordinate
// deltas. At the distances between consecutive sightings of the same
// tracker the error against a true great-circle bearing is negligible.
func Angle(a, b Point) float64 {
	angle := degrees(math.Atan2(b.Longitude-a.Longitude, b.Latitude-a.Latitude))
	if angle < 0 {
		angle += degreesFullCircle
	}
	return angle
}

// radians converts degrees to radians.
func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// degrees converts radians to degrees.
func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
