// Package publish fans composite tracker and speed sensor state out to
// the configured sinks: retained MQTT topics, WebSocket broadcast,
// InfluxDB history, and the SQLite snapshot store.
//
// The Publisher is the single implementation of tracker.Publisher in the
// service. It runs on the scheduler loop, so every sink write is either
// non-blocking (MQTT, WebSocket, InfluxDB batching) or bounded by a short
// timeout (snapshots).
package publish
