// Package statebus bridges MQTT member state messages onto the
// entity.Bus interface consumed by the fusion engine.
//
// Member trackers publish JSON payloads on presence/state/{entity_id}.
// The bus decodes them, remembers the latest state per entity for the
// startup bootstrap pass, and fans changes out to per-entity handlers.
package statebus
