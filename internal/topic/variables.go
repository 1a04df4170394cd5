package topic

import (
	"strconv"
	"strings"
)

// Store holds named constants and named, not yet resolved templates. A name
// holds either a constant or a template, never both: storing a constant under
// a name removes the template of the same name.
//
// Setting a lower-case name additionally writes an upper-cased mirror constant
// holding the normalized value, so integration files can author values in
// friendly lower case and reference them in environment-variable style.
//
// Store is not safe for concurrent use; the bridge accesses it from its single
// scheduler worker only.
type Store struct {
	constants map[string]string
	templates map[string]*Template
}

// NewStore creates an empty variable store.
func NewStore() *Store {
	return &Store{
		constants: make(map[string]string),
		templates: make(map[string]*Template),
	}
}

// Clone returns an independent copy of the store. Templates are shared (they
// are not mutated after parsing); the name maps are copied so the clone can be
// extended and reduced without affecting the original.
func (s *Store) Clone() *Store {
	c := &Store{
		constants: make(map[string]string, len(s.constants)),
		templates: make(map[string]*Template, len(s.templates)),
	}
	for k, v := range s.constants {
		c.constants[k] = v
	}
	for k, v := range s.templates {
		c.templates[k] = v
	}
	return c
}

// Constant returns the constant stored under key, or the empty string.
func (s *Store) Constant(key string) string {
	return s.constants[key]
}

// Uses reports whether any stored template references the given field name.
func (s *Store) Uses(field string) bool {
	for _, t := range s.templates {
		if t.Has(field) {
			return true
		}
	}
	return false
}

// Template returns the mutable unresolved template for key, creating an empty
// one if absent.
func (s *Store) Template(key string) *Template {
	t, ok := s.templates[key]
	if !ok {
		t = &Template{}
		s.templates[key] = t
	}
	return t
}

// SetTemplate stores t as the unresolved template for key.
func (s *Store) SetTemplate(key string, t *Template) {
	s.templates[key] = t
}

// Set stores a constant under key, removing any unresolved template of the
// same name when removeTemplate is set. It also writes the upper-case mirror
// entry unless key contains '-' or '_' or already is upper case; the mirror
// holds the normalized value. The return value reports whether a mirror was
// written.
func (s *Store) Set(key, value string, removeTemplate bool) bool {
	s.constants[key] = value
	if removeTemplate {
		delete(s.templates, key)
	}
	if strings.ContainsAny(key, "-_") {
		return false
	}
	upper := strings.ToUpper(key)
	if upper == key {
		return false
	}
	s.constants[upper] = Normalize(value)
	if removeTemplate {
		delete(s.templates, upper)
	}
	return true
}

// SetInt stores the decimal representation of value as a constant under key.
func (s *Store) SetInt(key string, value int) {
	s.constants[key] = strconv.Itoa(value)
}

// Get resolves key to a string: a constant hit wins, else an unresolved
// template is rendered against the current constants, else the same two-step
// lookup runs under fallbackKey if given, else the result is empty.
func (s *Store) Get(key string, untilFirstEmpty, onlyAlphanum bool, fallbackKey string) string {
	if value, ok := s.constants[key]; ok {
		return value
	}
	if t, ok := s.templates[key]; ok {
		return t.Render(s.constants, untilFirstEmpty, onlyAlphanum)
	}
	if fallbackKey != "" {
		if value, ok := s.constants[fallbackKey]; ok {
			return value
		}
		if t, ok := s.templates[fallbackKey]; ok {
			return t.Render(s.constants, untilFirstEmpty, onlyAlphanum)
		}
	}
	return ""
}

// Reduce performs fixed-point constant folding: every template whose
// referenced fields are all constants is rendered and its result stored as a
// constant under its own name (including the upper-case mirror), and the
// template entry removed. Passes repeat until one completes without progress,
// so definitions may reference each other regardless of declaration order.
//
// Each pass first collects the reducible templates, then applies the removals
// and insertions, avoiding mutation of the map during iteration.
func (s *Store) Reduce() {
	for {
		var ready []string
		for key, t := range s.templates {
			if t.IsReducible(s.constants) {
				ready = append(ready, key)
			}
		}
		if len(ready) == 0 {
			return
		}
		for _, key := range ready {
			t, ok := s.templates[key]
			if !ok {
				// removed as the upper-case mirror of an earlier reduction
				continue
			}
			result, resolved := t.Reduce(s.constants, false)
			if !resolved {
				continue
			}
			delete(s.templates, key)
			s.Set(key, result, true)
		}
	}
}
