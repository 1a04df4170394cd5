package bus

import "errors"

// Domain-specific errors for catalog operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotFound is returned when no catalog entry matches a lookup.
	ErrNotFound = errors.New("bus: message not found")

	// ErrInvalidDefinition is returned for a malformed message definition.
	ErrInvalidDefinition = errors.New("bus: invalid message definition")

	// ErrNoSignal is returned when the bus has no signal.
	ErrNoSignal = errors.New("bus: no signal")

	// ErrPassive is returned when attempting to actively exchange a passive
	// message.
	ErrPassive = errors.New("bus: message is passive")
)
