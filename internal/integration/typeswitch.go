package integration

import (
	"strings"

	"github.com/graybus/ebus-bridge/internal/bus"
	"github.com/graybus/ebus-bridge/internal/topic"
)

// Rule is one entry of a type switch table: when the computed discriminator
// string matches Pattern (per bus.MatchesFilter), Label is selected as the
// payload-template variant.
type Rule struct {
	Label   string
	Pattern string
}

// TypeSwitches builds the per-physical-type override tables from the loaded
// settings. For each field type the rule set is taken from
// "type_switch-<suffix>" falling back to the shared "type_switch" value, and
// split into newline-separated "label=pattern" rules with lower-cased
// patterns. The result is empty when no settings reference type_switch.
func TypeSwitches(vars *topic.Store) map[string][]Rule {
	if !vars.Uses("type_switch") {
		return nil
	}
	switches := make(map[string][]Rule)
	for _, fieldType := range bus.FieldTypes() {
		suffix := fieldType.Suffix()
		str := vars.Get("type_switch-"+suffix, false, false, "type_switch")
		if str == "" {
			continue
		}
		for _, line := range strings.Split(str, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			pos := strings.IndexByte(line, '=')
			if pos <= 0 {
				continue
			}
			label := strings.TrimSpace(line[:pos])
			if label == "" {
				continue
			}
			pattern := strings.ToLower(strings.TrimSpace(line[pos+1:]))
			switches[suffix] = append(switches[suffix], Rule{Label: label, Pattern: pattern})
		}
	}
	return switches
}

// SelectLabel returns the label of the first rule whose pattern matches the
// discriminator, or empty when none matches.
func SelectLabel(rules []Rule, discriminator string) string {
	for _, rule := range rules {
		if bus.MatchesFilter(discriminator, rule.Pattern) {
			return rule.Label
		}
	}
	return ""
}
