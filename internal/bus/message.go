package bus

import (
	"fmt"
	"strings"
	"time"
)

// FieldType classifies the physical value a message field carries.
// It is a closed set; no other classifications exist.
type FieldType int

// Field data types.
const (
	TypeNumber FieldType = iota
	TypeBits
	TypeString
	TypeDate
	TypeTime
	TypeDateTime
)

// fieldTypeNames maps a FieldType to its definition type suffix.
var fieldTypeNames = []string{"number", "bits", "string", "date", "time", "datetime"}

// Suffix returns the definition type suffix for the field type
// (number, bits, string, date, time or datetime).
func (t FieldType) Suffix() string {
	if t < 0 || int(t) >= len(fieldTypeNames) {
		return "string"
	}
	return fieldTypeNames[int(t)]
}

// ParseFieldType converts a type suffix back to a FieldType.
func ParseFieldType(s string) (FieldType, error) {
	for i, name := range fieldTypeNames {
		if name == s {
			return FieldType(i), nil
		}
	}
	return TypeString, fmt.Errorf("%w: unknown field type %q", ErrInvalidDefinition, s)
}

// FieldTypes lists all field types in suffix order.
func FieldTypes() []FieldType {
	types := make([]FieldType, len(fieldTypeNames))
	for i := range fieldTypeNames {
		types[i] = FieldType(i)
	}
	return types
}

// Field describes one value slot of a bus message.
type Field struct {
	Name    string
	Type    FieldType
	Unit    string
	Comment string
}

// Message is one catalog entry: a named read or write operation on a bus
// circuit with a fixed field layout. Value and timestamp mutation goes through
// the owning Catalog, which serialises access.
type Message struct {
	circuit string
	name    string
	level   string
	write   bool
	passive bool
	fields  []Field

	pollPriority int

	values     []string
	created    time.Time
	lastUpdate time.Time
	lastChange time.Time
}

// NewMessage creates a catalog entry. The creation time stamps the entry for
// incremental definition publishing.
func NewMessage(circuit, name, level string, write, passive bool, pollPriority int, fields []Field) *Message {
	return &Message{
		circuit:      circuit,
		name:         name,
		level:        level,
		write:        write,
		passive:      passive,
		pollPriority: pollPriority,
		fields:       fields,
		created:      time.Now(),
	}
}

// Circuit returns the bus circuit the message belongs to.
func (m *Message) Circuit() string { return m.circuit }

// Name returns the message name.
func (m *Message) Name() string { return m.name }

// Level returns the access level required for the message, empty for none.
func (m *Message) Level() string { return m.level }

// IsWrite reports whether the message is a write operation.
func (m *Message) IsWrite() bool { return m.write }

// IsPassive reports whether the message is only observed on the bus and never
// actively read or written by the bridge.
func (m *Message) IsPassive() bool { return m.passive }

// PollPriority returns the current poll priority, 0 for unpolled.
func (m *Message) PollPriority() int { return m.pollPriority }

// SetPollPriority updates the poll priority and reports whether it changed.
// Valid priorities are 1 (highest) to 9.
func (m *Message) SetPollPriority(priority int) bool {
	if priority < 1 || priority > 9 || priority == m.pollPriority {
		return false
	}
	m.pollPriority = priority
	return true
}

// FieldCount returns the number of fields.
func (m *Message) FieldCount() int { return len(m.fields) }

// FieldName returns the name of field index, or empty when out of range.
func (m *Message) FieldName(index int) string {
	if index < 0 || index >= len(m.fields) {
		return ""
	}
	return m.fields[index].Name
}

// FieldAt returns the field definition at index.
func (m *Message) FieldAt(index int) (Field, bool) {
	if index < 0 || index >= len(m.fields) {
		return Field{}, false
	}
	return m.fields[index], true
}

// Key returns the lower-cased circuit/name catalog key.
func (m *Message) Key() string {
	return strings.ToLower(m.circuit) + "/" + strings.ToLower(m.name)
}

// CreateTime returns when the catalog entry was defined.
func (m *Message) CreateTime() time.Time { return m.created }

// LastUpdateTime returns when values were last decoded, zero for no data yet.
func (m *Message) LastUpdateTime() time.Time { return m.lastUpdate }

// LastChangeTime returns when a decoded value last differed from the previous
// one, zero for never.
func (m *Message) LastChangeTime() time.Time { return m.lastChange }

// HasData reports whether the message has been decoded at least once.
func (m *Message) HasData() bool { return !m.lastUpdate.IsZero() }

// FieldValue returns the last decoded value of field index, or empty.
func (m *Message) FieldValue(index int) string {
	if index < 0 || index >= len(m.values) {
		return ""
	}
	return m.values[index]
}

// storeValues records freshly decoded values and maintains the update and
// change timestamps. Called by the catalog with its lock held.
func (m *Message) storeValues(values []string, now time.Time) {
	changed := len(values) != len(m.values)
	if !changed {
		for i := range values {
			if values[i] != m.values[i] {
				changed = true
				break
			}
		}
	}
	m.values = append(m.values[:0], values...)
	m.lastUpdate = now
	if changed {
		m.lastChange = now
	}
}
