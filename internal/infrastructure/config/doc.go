// Package config provides configuration loading for Gray Logic Presence.
//
// Configuration is loaded from a YAML file with three layers of precedence:
//
//  1. Hardcoded defaults (defaultConfig)
//  2. YAML file values
//  3. Environment variable overrides (PRESENCE_* pattern)
//
// Group-level tracker defaults (require_movement, driving_speed, time_as)
// are folded into each group before validation, so the rest of the
// application only ever sees fully-resolved GroupConfig values.
//
// # Usage
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, group := range cfg.Trackers.Groups {
//	    // group.RequireMovement, group.TimeAs etc. are resolved
//	}
package config
