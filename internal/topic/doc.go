// Package topic implements the placeholder template language used for MQTT
// topic and payload construction.
//
// A template is a flat sequence of literal text and %field placeholders, e.g.
//
//	ebusd/%circuit/%name
//
// Templates render against a set of named values, reverse-match a concrete
// topic string back into field values, and can be folded to constants once all
// referenced values are known (see Store).
//
// The recognised field names circuit, name and field address a bus message;
// any other placeholder name is carried through rendering but discarded when
// matching. %% renders as a literal percent sign.
package topic
