package bus

import "time"

// Event represents a domain event published on the bus.
//
// Kind namespaces in use:
//
//	socket.*  inbound channel events, decoded and typed
//	state.*   store mutations applied by the sync engine
//	session.* connection status transitions
//	notify.*  sound cues for the presentation layer
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
