// Package entity defines the state model shared by every tracker source.
//
// A State is a snapshot of one entity: its identifier, state string,
// attributes, and production time. Attrs provides type-coercing lookups
// with per-attribute key fallback chains, since different tracker sources
// name the same attribute differently (gps_accuracy vs acc, battery_level
// vs battery, and so on).
//
// The Bus interface abstracts state-change delivery so the fusion engine
// can be tested without a broker.
package entity
