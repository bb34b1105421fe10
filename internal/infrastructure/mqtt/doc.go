// Package mqtt provides MQTT client connectivity for the presence service.
//
// This package manages:
//   - Connection to Mosquitto broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The presence service uses MQTT as its message bus. Member trackers
// (phone apps, router integrations, BLE scanners) publish raw state
// changes; the service subscribes to them, fuses per-group state, and
// publishes composite tracker state back to the broker.
//
//	Member Trackers → MQTT Broker → Presence Service → MQTT Broker
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to all member tracker state updates
//	err = client.Subscribe(mqtt.Topics{}.AllMemberStates(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish fused tracker state
//	topic := mqtt.Topics{}.TrackerState("family-phones")
//	client.PublishRetained(topic, []byte(`{"state":"home"}`))
package mqtt
