// Package integration loads MQTT integration settings files.
//
// An integration file is line-oriented key=value text feeding the topic
// variable store: values without placeholders become constants, values with
// %field placeholders become templates. A '?' before the '=' marks the entry
// as optional (it collapses to empty instead of staying unresolved). A blank
// line terminates an entry; continuation lines start with whitespace and are
// joined with a newline; lines starting with '#' are skipped wherever they
// appear.
//
// When the loaded settings reference a type_switch variable, per-physical-type
// override tables are built from the newline-separated "label=pattern" rule
// sets (see TypeSwitches).
package integration
