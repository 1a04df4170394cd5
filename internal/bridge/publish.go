package bridge

import (
	"context"
	"strconv"
	"strings"

	"github.com/graybus/ebus-bridge/internal/bus"
)

// topicFor renders the publication topic for a message. With a nil message
// the template is rendered up to its first unresolved placeholder, yielding
// the plain prefix.
func (b *Bridge) topicFor(msg *bus.Message, suffix, fieldName string) string {
	values := map[string]string{}
	if msg != nil {
		values["circuit"] = msg.Circuit()
		values["name"] = msg.Name()
		if fieldName != "" {
			values["field"] = fieldName
		}
	}
	return b.template.Render(values, true, false) + suffix
}

// publishTopic publishes data on topic. The retain flag is forced on when
// RetainAll is configured.
func (b *Bridge) publishTopic(topicStr, data string, retain bool) {
	b.logger.Debug("publish", "topic", topicStr, "data", data)
	if err := b.client.Publish(topicStr, []byte(data), b.opts.RetainAll || retain); err != nil {
		b.logger.Error("publish failed", "topic", topicStr, "error", err)
	}
}

// publishEmptyTopic publishes an empty payload, clearing any retained value
// when RetainAll is configured.
func (b *Bridge) publishEmptyTopic(topicStr string) {
	b.logger.Debug("publish empty", "topic", topicStr)
	if err := b.client.Publish(topicStr, nil, b.opts.RetainAll); err != nil {
		b.logger.Error("publish failed", "topic", topicStr, "error", err)
	}
}

// publishMessage publishes the current values of msg, either as one payload
// on the message topic or one payload per field when the topic template
// contains a field placeholder. With includeWithoutData set, a message that
// never received data is published with an empty payload instead of being
// skipped.
func (b *Bridge) publishMessage(ctx context.Context, msg *bus.Message, includeWithoutData bool) {
	noData := includeWithoutData && !msg.HasData()
	if !b.publishByField {
		if noData {
			b.publishEmptyTopic(b.topicFor(msg, "", ""))
			return
		}
		topicStr := b.topicFor(msg, "", "")
		payload := b.formatMessage(msg)
		b.publishTopic(topicStr, payload, false)
		b.record(ctx, msg, topicStr, payload)
		b.writeTelemetry(msg)
		return
	}
	for index := 0; index < msg.FieldCount(); index++ {
		fieldName := msg.FieldName(index)
		if noData {
			b.publishEmptyTopic(b.topicFor(msg, "", fieldName))
			continue
		}
		topicStr := b.topicFor(msg, "", fieldName)
		payload := b.formatField(msg, index)
		b.publishTopic(topicStr, payload, false)
		b.record(ctx, msg, topicStr, payload)
	}
	if !noData {
		b.writeTelemetry(msg)
	}
}

// formatMessage renders all field values of msg as one payload: fields
// joined by ';' in plain mode, an object keyed by field name in JSON mode.
func (b *Bridge) formatMessage(msg *bus.Message) string {
	if !b.opts.JSON {
		values := make([]string, msg.FieldCount())
		for i := range values {
			values[i] = msg.FieldValue(i)
		}
		return strings.Join(values, ";")
	}
	var sb strings.Builder
	sb.WriteByte('{')
	for i := 0; i < msg.FieldCount(); i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		name := msg.FieldName(i)
		if name == "" {
			name = strconv.Itoa(i)
		}
		sb.WriteByte('"')
		sb.WriteString(name)
		sb.WriteString(`": `)
		sb.WriteString(b.formatFieldJSON(msg, i))
	}
	sb.WriteByte('}')
	return sb.String()
}

// formatField renders a single field value for per-field publication.
func (b *Bridge) formatField(msg *bus.Message, index int) string {
	if !b.opts.JSON {
		return msg.FieldValue(index)
	}
	return b.formatFieldJSON(msg, index)
}

// formatFieldJSON renders a field value as JSON. Numeric fields stay
// unquoted; in verbose mode the value is wrapped in an object together with
// the unit and comment attributes.
func (b *Bridge) formatFieldJSON(msg *bus.Message, index int) string {
	field, ok := msg.FieldAt(index)
	if !ok {
		return "null"
	}
	value := jsonValue(field, msg.FieldValue(index))
	if !b.opts.Verbose {
		return value
	}
	var sb strings.Builder
	sb.WriteString(`{"value": `)
	sb.WriteString(value)
	if field.Unit != "" {
		sb.WriteString(`, "unit": `)
		sb.WriteString(strconv.Quote(field.Unit))
	}
	if field.Comment != "" {
		sb.WriteString(`, "comment": `)
		sb.WriteString(strconv.Quote(field.Comment))
	}
	sb.WriteByte('}')
	return sb.String()
}

// jsonValue formats a raw field value as a JSON scalar. Numeric field types
// whose value parses as a number are emitted bare, everything else as a
// quoted string.
func jsonValue(field bus.Field, raw string) string {
	if field.Type == bus.TypeNumber || field.Type == bus.TypeBits {
		if _, err := strconv.ParseFloat(raw, 64); err == nil {
			return raw
		}
	}
	return strconv.Quote(raw)
}

// record stores a publication in the history store if one is attached.
func (b *Bridge) record(ctx context.Context, msg *bus.Message, topicStr, payload string) {
	if b.history == nil {
		return
	}
	if err := b.history.Record(ctx, msg.Circuit(), msg.Name(), topicStr, payload); err != nil {
		b.logger.Warn("history record failed", "topic", topicStr, "error", err)
	}
}

// writeTelemetry forwards the numeric field values of msg to the telemetry
// writer if one is attached.
func (b *Bridge) writeTelemetry(msg *bus.Message) {
	if b.telemetry == nil {
		return
	}
	for index := 0; index < msg.FieldCount(); index++ {
		field, ok := msg.FieldAt(index)
		if !ok || (field.Type != bus.TypeNumber && field.Type != bus.TypeBits) {
			continue
		}
		value, err := strconv.ParseFloat(msg.FieldValue(index), 64)
		if err != nil {
			continue
		}
		name := msg.FieldName(index)
		if name == "" {
			name = strconv.Itoa(index)
		}
		b.telemetry.WriteFieldValue(msg.Circuit(), msg.Name(), name, value, msg.LastUpdateTime())
	}
}
