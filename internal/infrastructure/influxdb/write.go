package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteSighting records an accepted composite tracker sighting.
//
// This is the primary method for recording fused location history.
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - groupID: The composite tracker group identifier
//   - state: The published tracker state (e.g., "home", "not_home", a zone name)
//   - latitude, longitude: Fused coordinates in decimal degrees
//   - accuracy: GPS accuracy radius in metres
//   - seenAt: When the producing member reported the sighting
//
// Example:
//
//	client.WriteSighting("family-phones", "home", 51.5007, -0.1246, 12, seenAt)
func (c *Client) WriteSighting(groupID, state string, latitude, longitude, accuracy float64, seenAt time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"sighting",
		map[string]string{
			"group_id": groupID,
			"state":    state,
		},
		map[string]interface{}{
			"latitude":  latitude,
			"longitude": longitude,
			"accuracy":  accuracy,
		},
		seenAt,
	)

	c.writeAPI.WritePoint(point)
}

// WriteSpeedSample records a computed speed measurement for a group.
//
// Parameters:
//   - groupID: The composite tracker group identifier
//   - speedMPS: Speed in metres per second
//   - angle: Direction of travel in degrees (0-360), negative if unknown
func (c *Client) WriteSpeedSample(groupID string, speedMPS, angle float64) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{
		"speed_mps": speedMPS,
	}
	if angle >= 0 {
		fields["angle"] = angle
	}

	point := write.NewPoint(
		"speed",
		map[string]string{
			"group_id": groupID,
		},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "presence-01"},
//	    map[string]interface{}{"cpu_percent": 45.2, "memory_mb": 512})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
