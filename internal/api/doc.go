// Package api provides the read-only HTTP REST API and WebSocket server
// for the presence service.
//
// It exposes tracker group configuration, live member diagnostics, the
// current composite state, and the zone registry. State changes are
// pushed to WebSocket clients through the Hub; all mutation happens via
// configuration and the MQTT state bus, never through this API.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple
// goroutines.
package api
