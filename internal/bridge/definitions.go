package bridge

import (
	"strconv"
	"strings"
	"time"

	"github.com/graybus/ebus-bridge/internal/bus"
	"github.com/graybus/ebus-bridge/internal/integration"
	"github.com/graybus/ebus-bridge/internal/topic"
)

// publishGlobalDefinitions publishes the integration definitions for the
// global status topics. Each uses its own variable prefix with "def_global-"
// as the shared fallback.
func (b *Bridge) publishGlobalDefinitions() {
	globals := []struct{ name, topic string }{
		{"running", b.globalTopic + "running"},
		{"version", b.globalTopic + "version"},
		{"signal", b.globalTopic + "signal"},
		{"uptime", b.globalTopic + "uptime"},
		{"updatecheck", b.globalTopic + "updatecheck"},
		{"scan", b.globalTopic + "scan"},
	}
	for _, g := range globals {
		b.publishDefinition(b.vars, "def_global_"+g.name+"-", g.topic, "global", g.name, "def_global-")
	}
}

// publishDefinitions runs one incremental definition pass over the catalog,
// publishing an integration definition for every message (or field) added
// since the previous pass and passing the configured filters.
func (b *Bridge) publishDefinitions(now time.Time) {
	filterPriority := 0
	if s := b.vars.Constant("filter-priority"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 && v <= 9 {
			filterPriority = v
		}
	}
	filterCircuit := b.vars.Constant("filter-circuit")
	filterName := b.vars.Constant("filter-name")
	filterLevel := b.vars.Constant("filter-level")
	filterField := b.vars.Constant("filter-field")
	usesTypeSwitch := len(b.typeSwitches) > 0

	for _, msg := range b.catalog.FindAll("", "", "*", false) {
		if !msg.CreateTime().After(b.definitionsSince) {
			// only newer defined
			continue
		}
		if filterPriority > 0 && (msg.PollPriority() == 0 || msg.PollPriority() > filterPriority) {
			continue
		}
		if !bus.MatchesFilter(msg.Circuit(), filterCircuit) ||
			!bus.MatchesFilter(msg.Name(), filterName) ||
			!bus.MatchesFilter(msg.Level(), filterLevel) {
			continue
		}
		msgValues := b.vars.Clone()
		msgValues.Set("circuit", msg.Circuit(), true)
		msgValues.Set("name", msg.Name(), true)
		msgValues.SetInt("priority", msg.PollPriority())
		msgValues.Set("level", msg.Level(), true)
		msgValues.Set("direction", directionOf(msg), true)
		if !b.publishByField {
			msgValues.Set("topic", b.topicFor(msg, "", ""), true)
		}
		msgValues.Reduce()

		var fields strings.Builder
		fieldCount := msg.FieldCount()
		for index := 0; index < fieldCount; index++ {
			field, ok := msg.FieldAt(index)
			if !ok {
				continue
			}
			fieldName := msg.FieldName(index)
			if fieldName == "" && fieldCount == 1 {
				fieldName = "0"
			}
			if !bus.MatchesFilter(fieldName, filterField) {
				continue
			}
			typeSuffix := field.Type.Suffix()
			typ := msgValues.Get("type-"+typeSuffix, false, false, "")
			if typ == "" {
				continue
			}
			values := msgValues.Clone()
			values.Set("type", typ, true)
			values.SetInt("index", index)
			values.Set("field", fieldName, true)
			values.Set("fieldcomment", field.Comment, true)
			values.Set("unit", field.Unit, true)
			if usesTypeSwitch {
				values.Reduce()
				discriminator := values.Get("type_switch-by", false, false, "")
				label := integration.SelectLabel(b.typeSwitches[typeSuffix], discriminator)
				values.Set("type_switch", label, true)
			}
			values.Reduce()
			values.Set("type_part", values.Get("type_part-"+typeSuffix, false, false, ""), true)
			if b.publishByField {
				values.Set("topic", b.topicFor(msg, "", fieldName), true)
			}
			values.Reduce()
			if b.hasFieldsPayload {
				if value := values.Constant("field_payload"); value != "" {
					if fields.Len() > 0 {
						fields.WriteString(values.Constant("field-separator"))
					}
					fields.WriteString(value)
				}
				continue
			}
			b.publishDefinition(values, "definition-", "", "", "", "")
		}
		if fields.Len() > 0 {
			msgValues.Set("fields_payload", fields.String(), true)
			b.publishDefinition(msgValues, "definition-", "", "", "", "")
		}
	}
	b.definitionsSince = now
}

// publishDefinition resolves and publishes one integration definition from
// the variable store. values is cloned before any mutation. The definition
// topic, payload and retain flag are read from prefix+"topic" and friends,
// falling back to fallbackPrefix when given. Nothing is published without a
// definition topic.
func (b *Bridge) publishDefinition(values *topic.Store, prefix, topicStr, circuit, name, fallbackPrefix string) {
	values = values.Clone()
	reduce := false
	if topicStr != "" {
		values.Set("topic", topicStr, true)
		reduce = true
	}
	if circuit != "" {
		values.Set("circuit", circuit, true)
		reduce = true
	}
	if name != "" {
		values.Set("name", name, true)
		reduce = true
	}
	if reduce {
		values.Reduce()
	}
	fallback := func(key string) string {
		if fallbackPrefix == "" {
			return ""
		}
		return fallbackPrefix + key
	}
	defTopic := values.Get(prefix+"topic", false, false, fallback("topic"))
	if defTopic == "" {
		return
	}
	payload := values.Get(prefix+"payload", false, false, fallback("payload"))
	retainStr := values.Get(prefix+"retain", false, false, fallback("retain"))
	retain := retainStr != "" && retainStr != "0" && retainStr != "no" && retainStr != "false"
	b.publishTopic(defTopic, payload, retain)
}

// directionOf maps a message's read/write/passive nature to the direction
// variable: "r" passive read, "w" active write, "u" update (active read),
// "uw" passive write.
func directionOf(msg *bus.Message) string {
	if msg.IsWrite() {
		if msg.IsPassive() {
			return "uw"
		}
		return "w"
	}
	if msg.IsPassive() {
		return "r"
	}
	return "u"
}
