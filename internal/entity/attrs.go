package entity

import (
	"strconv"
	"time"
)

// Attribute key fallback chains. Different tracker sources name the same
// attribute differently, so lookups try each key in order.
var (
	AttrsLatitude        = []string{"latitude", "lat"}
	AttrsLongitude       = []string{"longitude", "lon"}
	AttrsGPSAccuracy     = []string{"gps_accuracy", "acc"}
	AttrsBatteryLevel    = []string{"battery_level", "battery"}
	AttrsBatteryCharging = []string{"battery_charging", "charging"}
	AttrsLastSeen        = []string{"last_seen", "last_timestamp"}
)

// Single-key attribute names used by the fusion engine.
const (
	AttrSourceType = "source_type"
	AttrZone       = "zone"
)

// Attrs holds an entity's attributes as decoded JSON.
type Attrs map[string]any

// Get returns the first value present under any of the given keys.
func (a Attrs) Get(keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := a[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// Float returns the first attribute under the given keys coerced to a
// float64. JSON numbers decode as float64; string values are parsed.
func (a Attrs) Float(keys ...string) (float64, bool) {
	v, ok := a.Get(keys...)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// String returns the first attribute under the given keys as a string.
func (a Attrs) String(keys ...string) (string, bool) {
	v, ok := a.Get(keys...)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Bool returns the first attribute under the given keys coerced to a bool.
// Accepts native booleans and the strings "true"/"false"/"on"/"off".
func (a Attrs) Bool(keys ...string) (bool, bool) {
	v, ok := a.Get(keys...)
	if !ok {
		return false, false
	}
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch b {
		case "true", "on":
			return true, true
		case "false", "off":
			return false, true
		}
	}
	return false, false
}

// Time returns the first attribute under the given keys parsed as a
// timestamp. Accepts RFC3339 strings and numeric Unix epoch seconds
// (including fractional seconds).
func (a Attrs) Time(keys ...string) (time.Time, bool) {
	v, ok := a.Get(keys...)
	if !ok {
		return time.Time{}, false
	}
	switch ts := v.(type) {
	case string:
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			return t, true
		}
		// Some sources send epoch seconds as a string.
		if f, err := strconv.ParseFloat(ts, 64); err == nil {
			return epochToTime(f), true
		}
		return time.Time{}, false
	case float64:
		return epochToTime(ts), true
	case int:
		return time.Unix(int64(ts), 0).UTC(), true
	case int64:
		return time.Unix(ts, 0).UTC(), true
	default:
		return time.Time{}, false
	}
}

// epochToTime converts fractional Unix epoch seconds to a UTC time.
func epochToTime(sec float64) time.Time {
	whole := int64(sec)
	frac := sec - float64(whole)
	return time.Unix(whole, int64(frac*float64(time.Second))).UTC()
}
