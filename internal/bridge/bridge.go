package bridge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/graybus/ebus-bridge/internal/bus"
	"github.com/graybus/ebus-bridge/internal/infrastructure/logging"
	"github.com/graybus/ebus-bridge/internal/infrastructure/mqtt"
	"github.com/graybus/ebus-bridge/internal/integration"
	"github.com/graybus/ebus-bridge/internal/topic"
)

// Scheduler timing constants.
const (
	// taskInterval is the minimum spacing of periodic tasks (uptime,
	// signal, reconnect attempts, definition publishing).
	taskInterval = 15 * time.Second

	// drainTimeout paces the loop while connected.
	drainTimeout = 1 * time.Second

	// disconnectedWait is the extra delay per loop iteration while the
	// broker is unreachable, on top of drainTimeout.
	disconnectedWait = 4 * time.Second

	// errorLogInterval rate-limits connection error logging.
	errorLogInterval = 10 * time.Second
)

// ConnState describes the bridge's view of the broker connection.
type ConnState int

// Connection states.
const (
	// StateDisconnected means no connection was ever requested.
	StateDisconnected ConnState = iota

	// StateAwaitingInitialConnect means the first connect failed with
	// invalid parameters that are being ignored; the bridge keeps retrying
	// with a fresh connect.
	StateAwaitingInitialConnect

	// StateConnected means the bridge is connected and subscribed.
	StateConnected

	// StateReconnecting means the connection was lost; the bridge retries
	// on the next periodic task slot.
	StateReconnecting
)

// Client is the broker connection surface the bridge drives. It is satisfied
// by *mqtt.Client.
type Client interface {
	SetWill(topic, payload string, retain bool)
	Connect() error
	Publish(topic string, payload []byte, retained bool) error
	Subscribe(filter string) error
	Drain(timeout time.Duration, handle func(mqtt.Message)) mqtt.DrainStatus
}

// Recorder persists published message payloads, e.g. to the history store.
type Recorder interface {
	Record(ctx context.Context, circuit, name, topic, payload string) error
}

// Telemetry receives numeric field values and signal transitions, e.g. for
// the InfluxDB writer.
type Telemetry interface {
	WriteFieldValue(circuit, name, field string, value float64, timestamp time.Time)
	WriteSignalState(acquired bool)
}

// Options configures a Bridge.
type Options struct {
	// Topic is the topic prefix or template, e.g. "ebusd" or
	// "ebusd/%circuit/%name".
	Topic string

	// IntegrationFile is the path of the variable file driving definition
	// publishing, empty to disable.
	IntegrationFile string

	// Version is the application version announced on connect.
	Version string

	// JSON selects JSON payload formatting.
	JSON bool

	// Verbose adds unit and comment attributes to JSON payloads.
	Verbose bool

	// RetainAll sets the retain flag on every publication.
	RetainAll bool

	// OnlyChanges suppresses republication of unchanged values.
	OnlyChanges bool

	// IgnoreInvalidParams keeps the bridge retrying after a connection
	// refusal caused by invalid parameters instead of failing fatally.
	IgnoreInvalidParams bool

	// AccessLevel is the access level granted to MQTT commands.
	AccessLevel string
}

// Bridge republishes the bus catalog over MQTT and answers get/set/list
// commands. All state is owned by the goroutine calling Run (or Tick).
type Bridge struct {
	client  Client
	catalog *bus.Catalog
	logger  *logging.Logger
	opts    Options

	template     *topic.Template
	vars         *topic.Store
	typeSwitches map[string][]integration.Rule

	publishByField       bool
	hasDefinitionTopic   bool
	hasFieldsPayload     bool
	configRestartTopic   string
	configRestartPayload string
	globalTopic          string
	subscribeTopic       string

	history   Recorder
	telemetry Telemetry

	state            ConnState
	start            time.Time
	lastTaskRun      time.Time
	lastSignal       time.Time
	lastUpdates      time.Time
	lastErrorLog     time.Time
	definitionsSince time.Time
	allowReconnect   bool
	signal           bool
	lastUpdateCheck  string
	lastScanStatus   string
}

// New creates a Bridge from the given broker client, catalog and options.
//
// The topic template is parsed with only the known placeholders (circuit,
// name, field) allowed, each at most once. If an integration file is
// configured it is loaded into the variable store after seeding the version,
// prefix and prefixn variables.
//
// Parameters:
//   - client: broker connection, not yet connected
//   - catalog: bus message catalog
//   - opts: bridge options
//   - logger: structured logger, nil for the default
//
// Returns:
//   - *Bridge: configured bridge, ready for Run
//   - error: ErrInvalidTopic or an integration file load error
func New(client Client, catalog *bus.Catalog, opts Options, logger *logging.Logger) (*Bridge, error) {
	if logger == nil {
		logger = logging.Default()
	}
	tmpl := &topic.Template{}
	if !tmpl.Parse(opts.Topic, true, true, false) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTopic, opts.Topic)
	}
	tmpl.EnsureDefault()

	vars := topic.NewStore()
	vars.SetTemplate("mqtttopic", tmpl)

	b := &Bridge{
		client:         client,
		catalog:        catalog,
		logger:         logger,
		opts:           opts,
		template:       tmpl,
		vars:           vars,
		publishByField: tmpl.Has("field"),
		// sentinel so that a first empty status still publishes "OK"
		lastUpdateCheck: ".",
		lastScanStatus:  ".",
	}

	if opts.IntegrationFile != "" {
		vars.Set("version", opts.Version, true)
		prefix := vars.Get("mqtttopic", true, false, "")
		vars.Set("prefix", prefix, true)
		vars.Set("prefixn", strings.TrimRight(prefix, "/_"), true)
		if err := integration.Load(opts.IntegrationFile, vars); err != nil {
			return nil, fmt.Errorf("load integration file: %w", err)
		}
		b.typeSwitches = integration.TypeSwitches(vars)
	}

	b.hasDefinitionTopic = vars.Get("definition-topic", false, false, "") != ""
	b.hasFieldsPayload = vars.Uses("fields_payload")
	b.configRestartTopic = vars.Get("config_restart-topic", false, false, "")
	b.configRestartPayload = vars.Get("config_restart-payload", false, false, "")
	b.globalTopic = b.topicFor(nil, "global/", "")
	b.subscribeTopic = b.topicFor(nil, "#", "")

	now := time.Now()
	b.start = now
	b.lastTaskRun = now
	return b, nil
}

// SetHistory attaches a publication history recorder.
func (b *Bridge) SetHistory(history Recorder) {
	b.history = history
}

// SetTelemetry attaches a telemetry writer for field values and signal state.
func (b *Bridge) SetTelemetry(telemetry Telemetry) {
	b.telemetry = telemetry
}

// State returns the current connection state.
func (b *Bridge) State() ConnState {
	return b.state
}

// GlobalTopic returns the resolved global status topic prefix, e.g.
// "ebusd/global/".
func (b *Bridge) GlobalTopic() string {
	return b.globalTopic
}

// Start sets the last will and requests the initial broker connection.
//
// A connection refusal caused by invalid parameters is fatal unless
// IgnoreInvalidParams is set; any other failure leaves the bridge retrying
// from the Run loop.
func (b *Bridge) Start() error {
	b.client.SetWill(b.globalTopic+"running", "false", true)
	err := b.client.Connect()
	if err == nil {
		b.state = StateConnected
		b.onConnected()
		return nil
	}
	if errors.Is(err, mqtt.ErrInvalidParams) && !b.opts.IgnoreInvalidParams {
		return fmt.Errorf("%w: %v", ErrConnectFatal, err)
	}
	if errors.Is(err, mqtt.ErrInvalidParams) {
		b.state = StateAwaitingInitialConnect
	} else {
		b.state = StateReconnecting
	}
	b.logger.Warn("unable to connect, retrying", "error", err)
	return nil
}

// Run connects to the broker and drives the bridge loop until ctx is
// cancelled. On shutdown it publishes the final signal state and clears the
// retained scan status; closing the client is left to the caller.
func (b *Bridge) Run(ctx context.Context) error {
	now := time.Now()
	b.start = now
	b.lastTaskRun = now
	if err := b.Start(); err != nil {
		return err
	}
	for {
		b.Tick(ctx, time.Now())
		if b.state != StateConnected {
			select {
			case <-ctx.Done():
			case <-time.After(disconnectedWait):
			}
		}
		select {
		case <-ctx.Done():
			b.publishTopic(b.globalTopic+"signal", "false", true)
			// clear retain of scan status
			b.publishTopic(b.globalTopic+"scan", "", true)
			return nil
		default:
		}
	}
}

// Tick runs one loop iteration: drain inbound messages, run periodic tasks
// if due, publish the signal state and flush updated messages. now is the
// wall clock for this iteration.
func (b *Bridge) Tick(ctx context.Context, now time.Time) {
	wasConnected := b.state == StateConnected
	b.handleTraffic(ctx, now)
	reconnected := !wasConnected && b.state == StateConnected
	b.allowReconnect = false
	sendSignal := reconnected
	if now.Before(b.start) {
		// clock skew
		if now.Before(b.lastSignal) {
			b.lastSignal = b.lastSignal.Add(-b.lastTaskRun.Sub(now))
		}
		b.lastTaskRun = now
	} else if now.Sub(b.lastTaskRun) > taskInterval {
		b.allowReconnect = true
		if b.state == StateConnected {
			sendSignal = true
			uptime := int64(now.Sub(b.start) / time.Second)
			b.publishTopic(b.globalTopic+"uptime", strconv.FormatInt(uptime, 10), false)
			if b.definitionsSince.IsZero() {
				b.publishGlobalDefinitions()
				b.definitionsSince = time.Unix(1, 0)
			}
			if b.hasDefinitionTopic {
				b.publishDefinitions(now)
			}
		}
		b.lastTaskRun = now
	}
	if sendSignal {
		b.publishSignal(now, reconnected)
	}
	b.flushUpdates(ctx, now)
}

// handleTraffic drains inbound messages for one interval and, when a
// periodic task slot allows it, attempts to restore a lost connection.
func (b *Bridge) handleTraffic(ctx context.Context, now time.Time) {
	status := b.client.Drain(drainTimeout, func(msg mqtt.Message) {
		b.HandleMessage(ctx, msg.Topic, string(msg.Payload))
	})
	switch status {
	case mqtt.DrainOK:
		return
	case mqtt.DrainConnectionLost:
		b.logger.Error("connection lost")
		b.state = StateReconnecting
	case mqtt.DrainNotConnected:
		if b.state == StateConnected {
			b.state = StateReconnecting
		}
	}
	if !b.allowReconnect || b.state == StateDisconnected {
		return
	}
	err := b.client.Connect()
	if err != nil {
		if errors.Is(err, mqtt.ErrInvalidParams) && b.state == StateAwaitingInitialConnect {
			b.logger.Error("unable to connect (invalid parameters), retrying")
		} else if now.Sub(b.lastErrorLog) > errorLogInterval {
			// log at most every 10 seconds
			b.lastErrorLog = now
			b.logger.Error("unable to connect, retrying", "error", err)
		}
		return
	}
	b.state = StateConnected
	b.logger.Info("connection re-established")
	b.onConnected()
}

// onConnected announces the bridge on the global topics and subscribes to
// the command wildcard and, if configured, the config restart topic.
func (b *Bridge) onConnected() {
	sep := ""
	if b.opts.JSON {
		sep = "\""
	}
	b.publishTopic(b.globalTopic+"version", sep+b.opts.Version+sep, true)
	b.publishTopic(b.globalTopic+"running", "true", true)
	if err := b.client.Subscribe(b.subscribeTopic); err != nil {
		b.logger.Error("subscribe failed", "topic", b.subscribeTopic, "error", err)
	}
	if b.configRestartTopic != "" {
		if err := b.client.Subscribe(b.configRestartTopic); err != nil {
			b.logger.Error("subscribe failed", "topic", b.configRestartTopic, "error", err)
		}
	}
}

// publishSignal publishes the bus signal state. The topic is retained and
// published only on a state change or right after a reconnect.
func (b *Bridge) publishSignal(now time.Time, reconnected bool) {
	if b.catalog.HasSignal() {
		b.lastSignal = now
		if !b.signal || reconnected {
			b.signal = true
			b.publishTopic(b.globalTopic+"signal", "true", true)
			if b.telemetry != nil {
				b.telemetry.WriteSignalState(true)
			}
		}
		return
	}
	if b.signal || reconnected {
		b.signal = false
		b.publishTopic(b.globalTopic+"signal", "false", true)
		if b.telemetry != nil {
			b.telemetry.WriteSignalState(false)
		}
	}
}

// flushUpdates publishes the catalog's queued value updates. Without a
// connection the queue is discarded. With OnlyChanges set, a message is
// skipped unless its value changed since the previous flush.
func (b *Bridge) flushUpdates(ctx context.Context, now time.Time) {
	if b.state != StateConnected {
		b.catalog.DropUpdated()
		return
	}
	updated := b.catalog.TakeUpdated()
	if len(updated) == 0 {
		return
	}
	for _, msg := range updated {
		if msg.LastChangeTime().IsZero() {
			continue
		}
		if b.opts.OnlyChanges && !msg.LastChangeTime().After(b.lastUpdates) {
			continue
		}
		b.publishMessage(ctx, msg, false)
	}
	b.lastUpdates = now
}

// NotifyUpdateCheck publishes an update check result on the global topic.
// Only changes are published; an empty result is reported as "OK".
func (b *Bridge) NotifyUpdateCheck(result string) {
	if result == b.lastUpdateCheck {
		return
	}
	b.lastUpdateCheck = result
	b.publishTopic(b.globalTopic+"updatecheck", b.quoteStatus(result), true)
}

// NotifyScanStatus publishes a bus scan status on the global topic. Only
// changes are published; an empty status is reported as "OK".
func (b *Bridge) NotifyScanStatus(status string) {
	if status == b.lastScanStatus {
		return
	}
	b.lastScanStatus = status
	b.publishTopic(b.globalTopic+"scan", b.quoteStatus(status), true)
}

// quoteStatus formats a status value for publication, quoting it in JSON
// mode and substituting "OK" for an empty value.
func (b *Bridge) quoteStatus(value string) string {
	if value == "" {
		value = "OK"
	}
	if b.opts.JSON {
		return "\"" + value + "\""
	}
	return value
}
