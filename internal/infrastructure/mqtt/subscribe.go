package mqtt

import (
	"fmt"
)

// Subscribe registers a topic filter for inbound messages.
//
// Filters can include MQTT wildcards:
//   - + (single-level): "ebusd/+/+/get" matches any circuit and message
//   - # (multi-level): "ebusd/#" matches the whole topic tree
//
// Received messages are queued internally and handed out by Drain; there is
// no per-filter callback. The filter is tracked and automatically restored
// after a reconnect.
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
func (c *Client) Subscribe(filter string) error {
	// Validate inputs
	if filter == "" {
		return ErrInvalidTopic
	}

	// Check connection state
	if !c.IsConnected() {
		return ErrNotConnected
	}

	qos := byte(c.cfg.QoS)

	// Track for reconnection restoration
	c.subMu.Lock()
	c.subscriptions[filter] = qos
	c.subMu.Unlock()

	// A nil callback routes messages to the default handler, which feeds
	// the inbound queue.
	token := c.client.Subscribe(filter, qos, nil)
	if !token.WaitTimeout(defaultPublishTimeout) {
		// Remove from tracking since subscription failed
		c.subMu.Lock()
		delete(c.subscriptions, filter)
		c.subMu.Unlock()
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		// Remove from tracking since subscription failed
		c.subMu.Lock()
		delete(c.subscriptions, filter)
		c.subMu.Unlock()
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	return nil
}

// Unsubscribe removes a filter and stops receiving messages for it.
//
// Any messages already queued may still be delivered by Drain.
func (c *Client) Unsubscribe(filter string) error {
	// Validate inputs
	if filter == "" {
		return ErrInvalidTopic
	}

	// Check connection state
	if !c.IsConnected() {
		return ErrNotConnected
	}

	// Remove from tracking
	c.subMu.Lock()
	delete(c.subscriptions, filter)
	c.subMu.Unlock()

	// Unsubscribe from broker
	token := c.client.Unsubscribe(filter)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	return nil
}

// SubscriptionCount returns the number of tracked filters.
//
// This can be useful for monitoring and debugging.
func (c *Client) SubscriptionCount() int {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	return len(c.subscriptions)
}

// HasSubscription checks if a filter is tracked.
//
// Note: This checks only the exact filter string, not pattern matching.
func (c *Client) HasSubscription(filter string) bool {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	_, exists := c.subscriptions[filter]
	return exists
}
