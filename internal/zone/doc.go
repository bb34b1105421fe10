// Package zone provides the named circular regions that resolve tracker
// coordinates to human-readable states.
//
// The home zone (slug "home") is special: coordinates inside it produce
// the "home" state, and its center stands in for members that report
// "home" without coordinates of their own.
//
// Zones are persisted in SQLite and held in an in-memory Registry for
// lock-free point-in-zone queries on the hot path.
//
// # Thread Safety
//
// Registry is safe for concurrent use. SQLiteRepository is safe for
// concurrent use (SQLite WAL mode + connection pooling).
package zone
