package mqtt

import "fmt"

// Topic prefixes for the presence service.
//
// Member trackers publish raw state changes on the flat scheme:
// presence/state/{entity_id}. The service publishes fused composite
// state under presence/core/.
const (
	// TopicPrefix is the base for all presence topics.
	TopicPrefix = "presence"

	// TopicPrefixCore is the base for topics published by the service.
	TopicPrefixCore = "presence/core"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "presence/system"
)

// Topics provides builders for presence MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.MemberState("device_tracker.phone_anna")
//	// Returns: "presence/state/device_tracker.phone_anna"
type Topics struct{}

// MemberState returns the topic a member tracker publishes its state on.
//
// Example: presence/state/device_tracker.phone_anna
func (Topics) MemberState(entityID string) string {
	return fmt.Sprintf("%s/state/%s", TopicPrefix, entityID)
}

// AllMemberStates returns the wildcard pattern matching every member
// tracker state topic.
//
// Example: presence/state/+
func (Topics) AllMemberStates() string {
	return fmt.Sprintf("%s/state/+", TopicPrefix)
}

// TrackerState returns the topic the fused composite tracker state is
// published on. Published retained so late subscribers see current state.
//
// Example: presence/core/tracker/family-phones
func (Topics) TrackerState(groupID string) string {
	return fmt.Sprintf("%s/tracker/%s", TopicPrefixCore, groupID)
}

// SensorState returns the topic a group's speed sensor publishes on.
//
// Example: presence/core/sensor/family-phones_speed
func (Topics) SensorState(groupID string) string {
	return fmt.Sprintf("%s/sensor/%s_speed", TopicPrefixCore, groupID)
}

// SystemStatus returns the topic for service online/offline status.
// Used for both the LWT and graceful shutdown messages.
//
// Example: presence/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}
