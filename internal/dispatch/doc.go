// Package dispatch provides a keyed signal bus for decoupled delivery
// of sightings from composite trackers to their speed sensors.
//
// Handlers run on the scheduler loop, inheriting its ordering guarantee.
package dispatch
