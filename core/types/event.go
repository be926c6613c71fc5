package types

// Event represents a typed event emitted during state transitions. Attributes
// carry string-encoded payload fields so downstream consumers never need to
// understand module internals.
type Event struct {
	Type       string
	Attributes map[string]string
}
