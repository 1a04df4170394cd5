package topic

import "testing"

func parseInto(t *testing.T, s *Store, key, template string, emptyIfMissing bool) {
	t.Helper()
	if !s.Template(key).Parse(template, false, false, emptyIfMissing) {
		t.Fatalf("Parse(%q) failed", template)
	}
}

func TestSetMirror(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		value      string
		wantMirror bool
		mirrorKey  string
		mirrorWant string
	}{
		{"lower case mirrored", "prefix", "ebusd/", true, "PREFIX", "ebusd_"},
		{"mixed case mirrored", "Prefix", "a b", true, "PREFIX", "a_b"},
		{"underscore not mirrored", "type_topic", "x", false, "", ""},
		{"dash not mirrored", "filter-name", "x", false, "", ""},
		{"upper case not mirrored", "PREFIX", "x", false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			mirrored := s.Set(tt.key, tt.value, true)
			if mirrored != tt.wantMirror {
				t.Fatalf("Set(%q) mirror = %v, want %v", tt.key, mirrored, tt.wantMirror)
			}
			if s.Constant(tt.key) != tt.value {
				t.Errorf("Constant(%q) = %q, want %q", tt.key, s.Constant(tt.key), tt.value)
			}
			if tt.wantMirror && s.Constant(tt.mirrorKey) != tt.mirrorWant {
				t.Errorf("Constant(%q) = %q, want %q", tt.mirrorKey, s.Constant(tt.mirrorKey), tt.mirrorWant)
			}
		})
	}
}

func TestGetLookupOrder(t *testing.T) {
	s := NewStore()
	s.Set("known", "constant-value", true)
	parseInto(t, s, "tmpl", "x/%known", false)

	if got := s.Get("known", false, false, ""); got != "constant-value" {
		t.Errorf("constant lookup = %q", got)
	}
	if got := s.Get("tmpl", false, false, ""); got != "x/constant-value" {
		t.Errorf("template lookup = %q", got)
	}
	if got := s.Get("absent", false, false, "tmpl"); got != "x/constant-value" {
		t.Errorf("fallback lookup = %q", got)
	}
	if got := s.Get("absent", false, false, ""); got != "" {
		t.Errorf("missing lookup = %q, want empty", got)
	}
}

func TestReduceFoldsChains(t *testing.T) {
	s := NewStore()
	// payload -> type -> unit, declared in reverse dependency order.
	parseInto(t, s, "payload", "value with %type", false)
	parseInto(t, s, "type", "kind %unit", false)
	s.Set("unit", "celsius", true)

	s.Reduce()

	if got := s.Constant("type"); got != "kind celsius" {
		t.Errorf("type = %q, want %q", got, "kind celsius")
	}
	if got := s.Constant("payload"); got != "value with kind celsius" {
		t.Errorf("payload = %q, want %q", got, "value with kind celsius")
	}

	// Fixed point: nothing unresolved should remain, and reducing again is a
	// no-op.
	if s.Uses("type") || s.Uses("unit") {
		t.Error("unresolved templates remain after Reduce")
	}
	before := s.Constant("payload")
	s.Reduce()
	if s.Constant("payload") != before {
		t.Error("Reduce is not idempotent")
	}
}

func TestReduceLeavesUnresolvable(t *testing.T) {
	s := NewStore()
	parseInto(t, s, "topic", "t/%circuit/%name", false)
	s.Set("other", "x", true)

	s.Reduce()

	// circuit/name are runtime values, so the template must stay pending.
	if s.Constant("topic") != "" {
		t.Errorf("topic reduced prematurely to %q", s.Constant("topic"))
	}
	if !s.Uses("circuit") {
		t.Error("template lost during Reduce")
	}
}

func TestReduceWritesMirror(t *testing.T) {
	s := NewStore()
	parseInto(t, s, "address", "bus %id", false)
	s.Set("id", "a/1", true)

	s.Reduce()

	if got := s.Constant("address"); got != "bus a/1" {
		t.Errorf("address = %q", got)
	}
	if got := s.Constant("ADDRESS"); got != "bus_a_1" {
		t.Errorf("ADDRESS mirror = %q, want %q", got, "bus_a_1")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := NewStore()
	s.Set("shared", "original", true)
	parseInto(t, s, "tmpl", "x/%shared", false)

	c := s.Clone()
	c.Set("shared", "changed", true)
	c.Reduce()

	if s.Constant("shared") != "original" {
		t.Error("clone mutation leaked into original")
	}
	if !s.Uses("shared") {
		t.Error("clone Reduce removed template from original")
	}
	if got := c.Constant("tmpl"); got != "x/changed" {
		t.Errorf("clone tmpl = %q, want %q", got, "x/changed")
	}
}

func TestSetInt(t *testing.T) {
	s := NewStore()
	s.SetInt("priority", 5)
	if got := s.Constant("priority"); got != "5" {
		t.Errorf("priority = %q, want %q", got, "5")
	}
}
