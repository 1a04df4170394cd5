package topic

import "strings"

// Known field indices. Parts referencing one of these names populate the
// corresponding out value during topic matching.
const (
	// FieldCircuit is the index of the circuit field.
	FieldCircuit = 0

	// FieldName is the index of the message name field.
	FieldName = 1

	// FieldField is the index of the message field name field.
	FieldField = 2

	// unknownField marks a placeholder with a name outside the known set.
	unknownField = 3

	// literal marks a part that is plain text, not a placeholder.
	literal = -1
)

// knownFieldNames maps the known field indices to their template names.
var knownFieldNames = []string{"circuit", "name", "field"}

// defaultPrefix is the topic prefix seeded by EnsureDefault on an empty
// template.
const defaultPrefix = "ebusd/"

// part is one element of a template: either literal text or a named field.
type part struct {
	text  string
	field int // literal, FieldCircuit..FieldField, or unknownField
}

// makePart classifies a captured token as a literal or a (known) field.
func makePart(text string, isField bool) part {
	if !isField {
		return part{text: text, field: literal}
	}
	for idx, name := range knownFieldNames {
		if text == name {
			return part{text: text, field: idx}
		}
	}
	return part{text: text, field: unknownField}
}

// Template is a parsed placeholder string. The zero value is an empty
// template; call Parse or EnsureDefault to populate it.
type Template struct {
	parts []part

	// emptyIfMissing selects how Reduce treats a missing or empty referenced
	// value: collapse the whole result to the empty string and report it as
	// resolved, instead of keeping the partial literal prefix unresolved.
	emptyIfMissing bool
}

// Parse scans templateStr into parts, replacing the template's previous
// content. A % toggles field capture; %% yields a literal percent sign; inside
// a field only letters and underscore are valid, any other character closes
// the field and resumes literal text.
//
// With onlyKnown set, an unrecognised field name fails the parse. With
// noKnownDuplicates set, a known field appearing twice fails the parse.
// On failure the template is left unchanged and false is returned.
func (t *Template) Parse(templateStr string, onlyKnown, noKnownDuplicates, emptyIfMissing bool) bool {
	var parts []part
	var stack strings.Builder
	inField := false
	for pos := 0; pos <= len(templateStr); pos++ {
		var ch byte
		if pos < len(templateStr) {
			ch = templateStr[pos]
		}
		empty := stack.Len() == 0
		if ch == '%' || ch == 0 {
			if inField && empty {
				// %% for a plain %
				inField = false
				if ch != 0 {
					stack.WriteByte(ch)
				}
			} else {
				if !empty {
					parts = append(parts, makePart(stack.String(), inField))
					stack.Reset()
				}
				inField = true
			}
			continue
		}
		if inField && !isFieldNameChar(ch) {
			if stack.Len() > 0 {
				parts = append(parts, makePart(stack.String(), true))
				stack.Reset()
			}
			inField = false
		}
		stack.WriteByte(ch)
	}
	if onlyKnown || noKnownDuplicates {
		foundMask := 0
		for _, p := range parts {
			if p.field == literal {
				continue
			}
			if onlyKnown && p.field >= unknownField {
				return false
			}
			if noKnownDuplicates && p.field < unknownField {
				bit := 1 << p.field
				if foundMask&bit != 0 {
					return false
				}
				foundMask |= bit
			}
		}
	}
	t.parts = parts
	t.emptyIfMissing = emptyIfMissing
	return true
}

func isFieldNameChar(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

// EnsureDefault guarantees the template is circuit/name-addressable: an empty
// template is seeded with the default prefix, a single literal without a path
// separator gets a trailing slash, and circuit and name fields are appended if
// not yet present.
func (t *Template) EnsureDefault() {
	if len(t.parts) == 0 {
		t.parts = append(t.parts, part{text: defaultPrefix, field: literal})
	} else if len(t.parts) == 1 && t.parts[0].field == literal && !strings.Contains(t.parts[0].text, "/") {
		t.parts[0].text += "/"
	}
	if !t.Has("circuit") {
		t.parts = append(t.parts,
			part{text: "circuit", field: FieldCircuit},
			part{text: "/", field: literal})
	}
	if !t.Has("name") {
		t.parts = append(t.parts, part{text: "name", field: FieldName})
	}
}

// Has reports whether the template references the given field name.
func (t *Template) Has(field string) bool {
	for _, p := range t.parts {
		if p.field != literal && p.text == field {
			return true
		}
	}
	return false
}

// Empty reports whether the template has no parts.
func (t *Template) Empty() bool {
	return len(t.parts) == 0
}

// Normalize replaces every non-alphanumeric character with an underscore.
func Normalize(s string) string {
	b := []byte(s)
	for i, c := range b {
		if !isAlphanum(c) {
			b[i] = '_'
		}
	}
	return string(b)
}

func isAlphanum(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// Render concatenates literals verbatim and field parts by lookup in values.
// A missing field contributes nothing; with untilFirstEmpty set, the first
// missing or empty lookup terminates the render early. With onlyAlphanum set,
// the full result is normalized to alphanumerics and underscores.
func (t *Template) Render(values map[string]string, untilFirstEmpty, onlyAlphanum bool) string {
	var ret strings.Builder
	for _, p := range t.parts {
		if p.field == literal {
			ret.WriteString(p.text)
			continue
		}
		value, ok := values[p.text]
		if !ok {
			if untilFirstEmpty {
				break
			}
			continue
		}
		if untilFirstEmpty && value == "" {
			break
		}
		ret.WriteString(value)
	}
	if !onlyAlphanum {
		return ret.String()
	}
	return Normalize(ret.String())
}

// IsReducible reports whether every field the template references is present
// in values.
func (t *Template) IsReducible(values map[string]string) bool {
	for _, p := range t.parts {
		if p.field == literal {
			continue
		}
		if _, ok := values[p.text]; !ok {
			return false
		}
	}
	return true
}

// Reduce renders the template and reports whether resolution was complete.
// Without emptyIfMissing, a missing value yields the partial literal prefix
// and false. With emptyIfMissing, a missing or empty value forces the result
// to the empty string, reported as resolved.
func (t *Template) Reduce(values map[string]string, onlyAlphanum bool) (string, bool) {
	var ret strings.Builder
	for _, p := range t.parts {
		if p.field == literal {
			ret.WriteString(p.text)
			continue
		}
		value, ok := values[p.text]
		if !ok {
			if t.emptyIfMissing {
				return "", true
			}
			return ret.String(), false
		}
		if t.emptyIfMissing && value == "" {
			return "", true
		}
		ret.WriteString(value)
	}
	result := ret.String()
	if onlyAlphanum {
		result = Normalize(result)
	}
	return result, true
}

// Match walks the template against a concrete topic string (without any verb
// suffix) and extracts the known field values. The return value is the number
// of parts matched, or a negative value when matching fails: a literal part
// must occur verbatim at the current offset, a non-final field extends up to
// the next literal, and a final field consumes the remainder but must not
// contain a path separator.
func (t *Template) Match(remain string) (circuit, name, field string, matched int) {
	last := 0
	count := len(t.parts)
	for idx := 0; idx < count; idx++ {
		p := t.parts[idx]
		if p.field == literal {
			if !strings.HasPrefix(remain[last:], p.text) {
				return circuit, name, field, -idx - 1
			}
			last += len(p.text)
			continue
		}
		var value string
		if idx+1 < count {
			// field values must be delimited by the following literal
			pos := strings.Index(remain[last:], t.parts[idx+1].text)
			if pos < 0 {
				return circuit, name, field, -idx - 1
			}
			value = remain[last : last+pos]
		} else {
			value = remain[last:]
			if strings.Contains(value, "/") {
				// a hierarchy level is not a valid field value
				return circuit, name, field, -idx - 1
			}
		}
		last += len(value)
		switch p.field {
		case FieldCircuit:
			circuit = value
		case FieldName:
			name = value
		case FieldField:
			field = value
		default:
			// unknown field: consumed but discarded
		}
	}
	return circuit, name, field, count
}
