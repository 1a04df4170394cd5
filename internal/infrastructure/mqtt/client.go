package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/eclipse/paho.mqtt.golang/packets"

	"github.com/graybus/ebus-bridge/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang for the bridge's single-threaded loop.
//
// Unlike a typical wrapper it does not reconnect on its own: the bridge runs
// a reconnect schedule and needs to observe every connection loss. Received
// messages are queued internally and handed out synchronously via Drain, so
// all dispatch happens on the caller's goroutine.
//
// Thread Safety:
//   - All methods are safe for concurrent use, though the bridge calls
//     Drain from a single goroutine.
type Client struct {
	client  pahomqtt.Client
	options *pahomqtt.ClientOptions
	cfg     config.MQTTConfig

	// inbound queues received messages until the next Drain call.
	inbound chan Message

	// subscriptions tracks active filters for re-subscription on reconnect.
	subscriptions map[string]byte
	subMu         sync.Mutex

	// connected tracks current connection state; lostErr records an
	// asynchronous connection loss until Drain reports it.
	connected bool
	lostErr   error
	connMu    sync.Mutex

	// logger for dropped-message warnings (optional, set via SetLogger).
	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Message is a received MQTT message awaiting dispatch.
type Message struct {
	Topic   string
	Payload []byte
}

// DrainStatus reports the connection outcome of a Drain call.
type DrainStatus int

const (
	// DrainOK means the connection was healthy for the whole drain window.
	DrainOK DrainStatus = iota

	// DrainNotConnected means there is currently no connection.
	DrainNotConnected

	// DrainConnectionLost means an established connection was lost since the
	// previous Drain call. Reported exactly once per loss.
	DrainConnectionLost
)

// New creates a Client from the bridge configuration.
//
// The client is not connected yet; call Connect. Options that cannot work
// (unreadable TLS material) are rejected here with ErrInvalidParams.
func New(cfg config.MQTTConfig) (*Client, error) {
	opts, err := buildClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	c := &Client{
		cfg:           cfg,
		options:       opts,
		inbound:       make(chan Message, inboundQueueSize),
		subscriptions: make(map[string]byte),
	}

	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleConnectionLost(err)
	})
	opts.SetDefaultPublishHandler(func(_ pahomqtt.Client, msg pahomqtt.Message) {
		c.enqueue(msg)
	})

	return c, nil
}

// SetWill configures the Last Will and Testament message.
//
// The broker publishes this message if the client disconnects unexpectedly.
// Must be called before Connect to take effect.
func (c *Client) SetWill(topic, payload string, retain bool) {
	c.options.SetWill(topic, payload, byte(c.cfg.QoS), retain)
}

// Connect attempts to establish a connection to the broker.
//
// On failure the error wraps either ErrInvalidParams (the broker rejected
// the configured credentials, client ID, or protocol version; retrying with
// the same configuration cannot succeed) or ErrConnectionFailed (transient
// network or broker problem).
//
// On success, previously registered subscriptions are restored.
func (c *Client) Connect() error {
	if c.client == nil {
		c.client = pahomqtt.NewClient(c.options)
	}

	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return classifyConnectError(err)
	}

	c.connMu.Lock()
	c.connected = true
	c.lostErr = nil
	c.connMu.Unlock()

	c.restoreSubscriptions()

	return nil
}

// classifyConnectError maps a paho connect error to the bridge's error taxonomy.
func classifyConnectError(err error) error {
	switch {
	case errors.Is(err, packets.ErrorRefusedBadProtocolVersion),
		errors.Is(err, packets.ErrorRefusedIDRejected),
		errors.Is(err, packets.ErrorRefusedBadUsernameOrPassword),
		errors.Is(err, packets.ErrorRefusedNotAuthorised):
		return fmt.Errorf("%w: %w", ErrInvalidParams, err)
	default:
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
}

// handleConnectionLost records an asynchronous connection loss.
// The loss is reported by the next Drain call.
func (c *Client) handleConnectionLost(err error) {
	c.connMu.Lock()
	c.connected = false
	if err == nil {
		err = ErrNotConnected
	}
	c.lostErr = err
	c.connMu.Unlock()
}

// enqueue adds a received message to the inbound queue.
// When the queue is full the message is dropped with a warning.
func (c *Client) enqueue(msg pahomqtt.Message) {
	m := Message{Topic: msg.Topic(), Payload: msg.Payload()}
	select {
	case c.inbound <- m:
	default:
		if logger := c.getLogger(); logger != nil {
			logger.Warn("inbound queue full, dropping message", "topic", m.Topic)
		}
	}
}

// Drain dispatches queued inbound messages for up to the given duration and
// reports the connection state.
//
// Each queued message is passed to handle on the calling goroutine. Drain
// always waits out the full timeout, which paces the bridge's main loop.
//
// Returns:
//   - DrainConnectionLost: once, if the connection was lost since the last call
//   - DrainNotConnected: if there is no connection
//   - DrainOK: otherwise
func (c *Client) Drain(timeout time.Duration, handle func(Message)) DrainStatus {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case msg := <-c.inbound:
			if handle != nil {
				handle(msg)
			}
		case <-timer.C:
			return c.connStatus()
		}
	}
}

// connStatus reads and resets the connection-loss flag.
func (c *Client) connStatus() DrainStatus {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.lostErr != nil {
		c.lostErr = nil
		return DrainConnectionLost
	}
	if !c.connected {
		return DrainNotConnected
	}
	return DrainOK
}

// LostError returns the error recorded for the most recent connection loss,
// or nil. It does not reset the Drain reporting state.
func (c *Client) LostError() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.lostErr
}

// restoreSubscriptions re-subscribes to all tracked filters after reconnect.
func (c *Client) restoreSubscriptions() {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	for filter, qos := range c.subscriptions {
		// Ignore errors here; a failed restore surfaces as silence on the
		// filter and the next reconnect retries it.
		c.client.Subscribe(filter, qos, nil)
	}
}

// Close gracefully disconnects from the MQTT broker.
//
// Any will message is NOT sent; callers wanting a final status message must
// publish it before closing.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	c.client.Disconnect(defaultDisconnectQuiesce)

	c.connMu.Lock()
	c.connected = false
	c.lostErr = nil
	c.connMu.Unlock()

	return nil
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.connected && c.client != nil && c.client.IsConnected()
}

// SetLogger sets a logger for queue overflow warnings.
// If not set, drops are silent.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// getLogger returns the current logger (may be nil).
func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}
