package entity

// Handler is invoked for each state change of a subscribed entity.
//
// Handlers may be invoked from arbitrary goroutines; implementations of
// Bus document their delivery guarantees.
type Handler func(s State)

// Bus delivers entity state changes to subscribers.
//
// The presence service's bus is MQTT-backed, but the fusion engine only
// depends on this interface so tests can drive it with an in-memory fake.
type Bus interface {
	// Subscribe registers a handler for state changes of the given entity.
	// It returns a function that removes the subscription.
	Subscribe(entityID string, fn Handler) (unsubscribe func(), err error)

	// Latest returns the most recent state seen for the entity, if any.
	// Used at startup to process states that arrived before subscription.
	Latest(entityID string) (State, bool)
}
