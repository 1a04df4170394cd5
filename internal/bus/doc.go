// Package bus models the field-bus message catalog the bridge republishes.
//
// The catalog holds one entry per bus message (circuit + name) with its field
// layout, access level, poll priority and the last decoded values. Actual bus
// I/O goes through the Transport interface; the bundled Simulator answers
// reads and writes from memory so the bridge can run without bus hardware.
//
// The bus side reports value changes through the catalog's updated-message
// queue, which the bridge drains once per scheduler tick. The queue is the
// only shared state between the two sides and its lock is never held across
// network calls.
package bus
