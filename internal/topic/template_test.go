package topic

import "testing"

func TestParseAndRender(t *testing.T) {
	tests := []struct {
		name     string
		template string
		values   map[string]string
		want     string
	}{
		{
			name:     "prefix with circuit and name",
			template: "ebusd/%circuit/%name",
			values:   map[string]string{"circuit": "heating", "name": "temp"},
			want:     "ebusd/heating/temp",
		},
		{
			name:     "literal only",
			template: "ebusd/global/signal",
			values:   nil,
			want:     "ebusd/global/signal",
		},
		{
			name:     "escaped percent",
			template: "load %%: %name",
			values:   map[string]string{"name": "boiler"},
			want:     "load %: boiler",
		},
		{
			name:     "unknown field rendered from values",
			template: "%prefix/state/%name",
			values:   map[string]string{"prefix": "home", "name": "temp"},
			want:     "home/state/temp",
		},
		{
			name:     "missing field contributes nothing",
			template: "a/%circuit/b",
			values:   map[string]string{},
			want:     "a//b",
		},
		{
			name:     "field closed by non-name character",
			template: "%circuit.%name",
			values:   map[string]string{"circuit": "hc1", "name": "mode"},
			want:     "hc1.mode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tmpl Template
			if !tmpl.Parse(tt.template, false, false, false) {
				t.Fatalf("Parse(%q) failed", tt.template)
			}
			got := tmpl.Render(tt.values, false, false)
			if got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name              string
		template          string
		onlyKnown         bool
		noKnownDuplicates bool
		wantOK            bool
	}{
		{"known fields accepted", "ebusd/%circuit/%name", true, true, true},
		{"unknown field rejected with onlyKnown", "x/%custom/%name", true, false, false},
		{"unknown field accepted without onlyKnown", "x/%custom/%name", false, false, true},
		{"duplicate known field rejected", "%circuit/%circuit", false, true, false},
		{"duplicate unknown field accepted", "%foo/%foo", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tmpl Template
			ok := tmpl.Parse(tt.template, tt.onlyKnown, tt.noKnownDuplicates, false)
			if ok != tt.wantOK {
				t.Errorf("Parse(%q) = %v, want %v", tt.template, ok, tt.wantOK)
			}
		})
	}
}

func TestParseFailureLeavesTemplateUnchanged(t *testing.T) {
	var tmpl Template
	if !tmpl.Parse("ebusd/%circuit/%name", true, true, false) {
		t.Fatal("initial Parse failed")
	}
	if tmpl.Parse("%bogus", true, false, false) {
		t.Fatal("Parse of unknown field should fail with onlyKnown")
	}
	got := tmpl.Render(map[string]string{"circuit": "hc", "name": "temp"}, false, false)
	if got != "ebusd/hc/temp" {
		t.Errorf("template changed by failed Parse: rendered %q", got)
	}
}

func TestEnsureDefault(t *testing.T) {
	tests := []struct {
		name     string
		template string
		values   map[string]string
		want     string
	}{
		{"empty gets full default", "", map[string]string{"circuit": "hc", "name": "temp"}, "ebusd/hc/temp"},
		{"bare prefix gets separator", "mybus", map[string]string{"circuit": "hc", "name": "temp"}, "mybus/hc/temp"},
		{"prefix with slash kept", "my/bus/", map[string]string{"circuit": "hc", "name": "temp"}, "my/bus/hc/temp"},
		{"circuit only gets name", "x/%circuit/", map[string]string{"circuit": "hc", "name": "temp"}, "x/hc/temp"},
		{"complete template untouched", "x/%name/%circuit", map[string]string{"circuit": "hc", "name": "temp"}, "x/temp/hc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tmpl Template
			if !tmpl.Parse(tt.template, false, false, false) {
				t.Fatalf("Parse(%q) failed", tt.template)
			}
			tmpl.EnsureDefault()
			if !tmpl.Has("circuit") || !tmpl.Has("name") {
				t.Fatal("EnsureDefault did not add circuit and name")
			}
			got := tmpl.Render(tt.values, false, false)
			if got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderUntilFirstEmpty(t *testing.T) {
	var tmpl Template
	if !tmpl.Parse("ebusd/%circuit/%name", false, false, false) {
		t.Fatal("Parse failed")
	}

	// No values at all: only the leading literal remains.
	if got := tmpl.Render(nil, true, false); got != "ebusd/" {
		t.Errorf("Render(nil) = %q, want %q", got, "ebusd/")
	}

	// Present but empty value terminates as well.
	values := map[string]string{"circuit": "hc", "name": ""}
	if got := tmpl.Render(values, true, false); got != "ebusd/hc/" {
		t.Errorf("Render() = %q, want %q", got, "ebusd/hc/")
	}
}

func TestRenderOnlyAlphanum(t *testing.T) {
	var tmpl Template
	if !tmpl.Parse("%circuit/%name", false, false, false) {
		t.Fatal("Parse failed")
	}
	values := map[string]string{"circuit": "hc 1", "name": "t.mp"}
	if got := tmpl.Render(values, false, true); got != "hc_1_t_mp" {
		t.Errorf("Render() = %q, want %q", got, "hc_1_t_mp")
	}
}

func TestReduce(t *testing.T) {
	tests := []struct {
		name           string
		template       string
		emptyIfMissing bool
		values         map[string]string
		want           string
		wantResolved   bool
	}{
		{
			name:         "all values present",
			template:     "a/%circuit/%name",
			values:       map[string]string{"circuit": "hc", "name": "temp"},
			want:         "a/hc/temp",
			wantResolved: true,
		},
		{
			name:         "missing keeps literal prefix",
			template:     "a/%circuit/%name",
			values:       map[string]string{"circuit": "hc"},
			want:         "a/hc/",
			wantResolved: false,
		},
		{
			name:           "missing collapses when optional",
			template:       "a/%circuit/%name",
			emptyIfMissing: true,
			values:         map[string]string{"circuit": "hc"},
			want:           "",
			wantResolved:   true,
		},
		{
			name:           "empty collapses when optional",
			template:       "a/%circuit/%name",
			emptyIfMissing: true,
			values:         map[string]string{"circuit": "hc", "name": ""},
			want:           "",
			wantResolved:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tmpl Template
			if !tmpl.Parse(tt.template, false, false, tt.emptyIfMissing) {
				t.Fatalf("Parse(%q) failed", tt.template)
			}
			got, resolved := tmpl.Reduce(tt.values, false)
			if got != tt.want || resolved != tt.wantResolved {
				t.Errorf("Reduce() = (%q, %v), want (%q, %v)", got, resolved, tt.want, tt.wantResolved)
			}
		})
	}
}

func TestIsReducible(t *testing.T) {
	var tmpl Template
	if !tmpl.Parse("a/%circuit/%name", false, false, false) {
		t.Fatal("Parse failed")
	}
	if tmpl.IsReducible(map[string]string{"circuit": "hc"}) {
		t.Error("IsReducible should be false with name missing")
	}
	if !tmpl.IsReducible(map[string]string{"circuit": "hc", "name": ""}) {
		t.Error("IsReducible should be true with all fields present (even empty)")
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name        string
		template    string
		topic       string
		wantCircuit string
		wantName    string
		wantField   string
		wantFail    bool
	}{
		{
			name:        "circuit and name",
			template:    "ebusd/%circuit/%name",
			topic:       "ebusd/heating/temp",
			wantCircuit: "heating",
			wantName:    "temp",
		},
		{
			name:        "with field segment",
			template:    "ebusd/%circuit/%name/%field",
			topic:       "ebusd/heating/temp/value",
			wantCircuit: "heating",
			wantName:    "temp",
			wantField:   "value",
		},
		{
			name:     "literal mismatch",
			template: "ebusd/%circuit/%name",
			topic:    "other/heating/temp",
			wantFail: true,
		},
		{
			name:     "missing delimiter",
			template: "ebusd/%circuit-%name",
			topic:    "ebusd/heating/temp",
			wantFail: true,
		},
		{
			name:     "trailing field with separator rejected",
			template: "ebusd/%name",
			topic:    "ebusd/heating/temp",
			wantFail: true,
		},
		{
			name:        "unknown field consumed and discarded",
			template:    "ebusd/%site/%circuit/%name",
			topic:       "ebusd/home/heating/temp",
			wantCircuit: "heating",
			wantName:    "temp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tmpl Template
			if !tmpl.Parse(tt.template, false, false, false) {
				t.Fatalf("Parse(%q) failed", tt.template)
			}
			circuit, name, field, matched := tmpl.Match(tt.topic)
			if tt.wantFail {
				if matched >= 0 {
					t.Fatalf("Match(%q) = %d, want failure", tt.topic, matched)
				}
				return
			}
			if matched < 0 {
				t.Fatalf("Match(%q) failed with %d", tt.topic, matched)
			}
			if circuit != tt.wantCircuit || name != tt.wantName || field != tt.wantField {
				t.Errorf("Match(%q) = (%q, %q, %q), want (%q, %q, %q)",
					tt.topic, circuit, name, field, tt.wantCircuit, tt.wantName, tt.wantField)
			}
		})
	}
}

func TestMatchInvertsRender(t *testing.T) {
	var tmpl Template
	if !tmpl.Parse("bus/%circuit/sub/%name/%field", false, false, false) {
		t.Fatal("Parse failed")
	}
	values := map[string]string{"circuit": "hc1", "name": "FlowTemp", "field": "temp"}
	rendered := tmpl.Render(values, false, false)
	circuit, name, field, matched := tmpl.Match(rendered)
	if matched < 0 {
		t.Fatalf("Match(%q) failed with %d", rendered, matched)
	}
	if circuit != values["circuit"] || name != values["name"] || field != values["field"] {
		t.Errorf("round trip = (%q, %q, %q), want %v", circuit, name, field, values)
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("a-b.c 1"); got != "a_b_c_1" {
		t.Errorf("Normalize() = %q, want %q", got, "a_b_c_1")
	}
}
