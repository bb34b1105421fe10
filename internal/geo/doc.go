// Package geo provides coordinate math and timezone resolution for the
// presence service.
//
// Distance uses the haversine great-circle formula. Angle deliberately uses
// a flat-plane approximation, which is accurate enough at the scale of
// consecutive tracker sightings and keeps direction values stable for the
// compass rosette.
//
// Timezone resolution is backed by the tzf library's embedded boundary
// dataset, so no network access or external database is needed.
package geo
