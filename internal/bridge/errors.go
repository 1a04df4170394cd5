package bridge

import "errors"

// Domain-specific errors for bridge setup and operation.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidTopic is returned when the configured topic template cannot
	// be parsed or uses a placeholder more than once.
	ErrInvalidTopic = errors.New("bridge: invalid topic template")

	// ErrConnectFatal is returned when the initial broker connection fails
	// with invalid parameters and the bridge is not configured to ignore
	// them.
	ErrConnectFatal = errors.New("bridge: connection failed with invalid parameters")
)
