package bus

import "strings"

// MatchesFilter reports whether value matches a definition filter expression.
// A filter is a comma-separated list of alternatives; '*' in an alternative
// matches any run of characters (so "heat*" prefix-matches and "*temp*"
// substring-matches). Comparison is case-insensitive and an empty filter
// matches every value.
func MatchesFilter(value, filter string) bool {
	if filter == "" {
		return true
	}
	v := strings.ToLower(value)
	for _, alt := range strings.Split(filter, ",") {
		alt = strings.ToLower(strings.TrimSpace(alt))
		if matchGlob(v, alt) {
			return true
		}
	}
	return false
}

// matchGlob matches value against a pattern where '*' stands for any run of
// characters. An empty pattern matches everything.
func matchGlob(value, pattern string) bool {
	if pattern == "" {
		return true
	}
	if !strings.Contains(pattern, "*") {
		return value == pattern
	}
	parts := strings.Split(pattern, "*")
	if first := parts[0]; !strings.HasPrefix(value, first) {
		return false
	}
	value = value[len(parts[0]):]
	for i := 1; i < len(parts)-1; i++ {
		if parts[i] == "" {
			continue
		}
		pos := strings.Index(value, parts[i])
		if pos < 0 {
			return false
		}
		value = value[pos+len(parts[i]):]
	}
	last := parts[len(parts)-1]
	return strings.HasSuffix(value, last)
}
