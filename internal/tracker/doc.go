// Package tracker implements the composite presence fusion engine.
//
// One Scanner per configured group subscribes to its member entities'
// state changes, reconciles each change under a single group mutex, and
// emits a canonical Sighting when an update is accepted. The
// CompositeTracker adapts sightings into observable state and derives
// speed between consecutive located sightings; the SpeedSensor publishes
// that metric as a companion numeric entity.
//
// # Reconciliation
//
// The per-event algorithm, in order: discard placeholder states; extract
// the last-seen candidate; reject per-member timestamp regressions via
// the anomaly ladder (inactive, active, warned, suspended); branch on
// source kind. GPS updates need a complete coordinate payload, drop
// byte-identical duplicates, and optionally require displacement beyond
// the combined accuracy radii. Presence-style updates are normalised to
// home/not_home, checked for authority against the rest of the group
// (GPS members outrank them), and given geometry: reuse the fused
// position when already home, take event coordinates when present, or
// synthesize the home location on arrival. Finally a group-wide
// staleness gate rejects anything not strictly newer than the previous
// accepted sighting.
//
// # Concurrency
//
// Reconciliation runs on bus delivery goroutines under the group mutex.
// Zone lookups bridge into the scheduler loop as blocking calls; accepted
// sightings are submitted to the loop fire-and-continue, so consumers
// never run while the mutex is held. Scanner.Close unsubscribes, then
// drains the mutex once: no callback is scheduled after it returns.
package tracker
