package mqtt

import "errors"

// Domain-specific errors for MQTT operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when attempting operations on a disconnected client.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed is returned when a connection attempt fails for a
	// transient reason (network unreachable, broker down, timeout).
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrInvalidParams is returned when a connection attempt fails because of
	// the configured parameters (bad credentials, rejected client ID,
	// unsupported protocol version, unreadable certificate files). Retrying
	// with the same configuration cannot succeed.
	ErrInvalidParams = errors.New("mqtt: invalid connection parameters")

	// ErrPublishFailed is returned when a publish operation fails.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed is returned when a subscribe operation fails.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrInvalidTopic is returned when an empty or invalid topic is provided.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")
)
