package bridge

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/graybus/ebus-bridge/internal/bus"
)

// HandleMessage dispatches one inbound MQTT message.
//
// The topic is split at its last slash into the message part and the verb
// (get, set or list). The message part is matched against the topic template
// to extract circuit, name and field. Messages on the config restart topic
// reset the definition publishing state instead.
//
// Parameters:
//   - ctx: cancellation for the bus exchange
//   - topicStr: full topic the message arrived on
//   - data: message payload
func (b *Bridge) HandleMessage(ctx context.Context, topicStr, data string) {
	pos := strings.LastIndexByte(topicStr, '/')
	if pos < 0 {
		return
	}
	if b.configRestartTopic != "" && topicStr == b.configRestartTopic {
		if b.configRestartPayload == "" || data == b.configRestartPayload {
			b.definitionsSince = time.Time{}
		}
		return
	}
	verb := topicStr[pos+1:]
	if verb == "" {
		return
	}
	isWrite := verb == "set"
	isList := !isWrite && verb == "list"
	if !isWrite && !isList && verb != "get" {
		return
	}
	b.logger.Debug("received topic", "topic", topicStr, "data", data)
	circuit, name, _, matched := b.template.Match(topicStr[:pos])
	if matched < 0 && !isList {
		b.logger.Error("received unmatchable topic", "topic", topicStr)
		return
	}
	if isList {
		b.handleList(ctx, circuit, name, data)
		return
	}
	if name == "" {
		return
	}
	b.logger.Info("received command", "verb", verb, "circuit", circuit, "name", name)
	msg := b.catalog.Find(circuit, name, b.opts.AccessLevel, isWrite, false)
	if msg == nil {
		msg = b.catalog.Find(circuit, name, b.opts.AccessLevel, isWrite, true)
	}
	if msg == nil {
		b.logger.Error("message not found", "verb", verb, "circuit", circuit, "name", name)
		return
	}
	if !msg.IsPassive() {
		useData := data
		if !isWrite && data != "" {
			useData = b.applyPollPriority(msg, useData)
		}
		if err := b.catalog.Exchange(ctx, msg, useData); err != nil {
			b.logger.Error("exchange failed", "verb", verb, "circuit", circuit, "name", name, "error", err)
			return
		}
		b.logger.Info("exchange done", "verb", verb, "circuit", circuit, "name", name, "data", data)
	}
	b.publishMessage(ctx, msg, false)
}

// handleList answers a list command. A trailing '*' on circuit or name
// switches that part to prefix matching. A non-empty payload restricts the
// listing to messages that have data.
func (b *Bridge) handleList(ctx context.Context, circuit, name, data string) {
	b.logger.Info("received list topic", "circuit", circuit, "name", name)
	circuitPrefix := strings.HasSuffix(circuit, "*")
	if circuitPrefix {
		circuit = strings.TrimSuffix(circuit, "*")
	}
	namePrefix := strings.HasSuffix(name, "*")
	if namePrefix {
		name = strings.TrimSuffix(name, "*")
	}
	messages := b.catalog.FindAll(circuit, name, b.opts.AccessLevel, !(circuitPrefix || namePrefix))
	onlyWithData := data != ""
	for _, msg := range messages {
		if circuitPrefix && (!strings.HasPrefix(msg.Circuit(), circuit) ||
			(!namePrefix && name != "" && msg.Name() != name)) {
			continue
		}
		if namePrefix && (!strings.HasPrefix(msg.Name(), name) ||
			(!circuitPrefix && circuit != "" && msg.Circuit() != circuit)) {
			continue
		}
		if onlyWithData && !msg.HasData() {
			continue
		}
		b.publishMessage(ctx, msg, true)
	}
}

// applyPollPriority strips a trailing "?N" poll priority request from a get
// payload and applies it to the message. The '?' is only recognized at the
// start of the payload or directly after a field separator.
func (b *Bridge) applyPollPriority(msg *bus.Message, data string) string {
	pos := strings.LastIndexByte(data, '?')
	if pos > 0 && data[pos-1] != ';' {
		pos = -1
	}
	if pos < 0 {
		return data
	}
	args := data[pos+1:]
	if pos > 0 {
		data = data[:pos-1]
	} else {
		data = data[:pos]
	}
	if args == "" {
		return data
	}
	priority, err := strconv.Atoi(args)
	if err != nil || priority < 1 || priority > 9 {
		return data
	}
	if msg.SetPollPriority(priority) {
		b.logger.Info("poll priority changed", "priority", priority)
	}
	return data
}
