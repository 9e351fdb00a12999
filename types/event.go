package types

// EventType tags the kind of change a listener is told about.
type EventType int

const (
	// Created fires when a key gets a value it did not have (put or read-through load).
	Created EventType = iota + 1

	// Updated fires when an existing value is replaced. OldValue holds the previous value.
	Updated

	// Removed fires on explicit removal. Value holds the removed value.
	Removed

	// Expired fires when an entry is found past its expiry and dropped from memory.
	// The Writer is never called for expirations; this event is the hook for external cleanup.
	Expired
)

func (t EventType) String() string {
	switch t {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case Removed:
		return "removed"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// Event is the single event shape delivered to listeners; switch on Type.
type Event[K comparable, V any] struct {
	Type  EventType
	Cache string
	Key   K
	Value V

	// OldValue is only meaningful when HasOldValue is true (Updated events).
	OldValue    V
	HasOldValue bool
}
