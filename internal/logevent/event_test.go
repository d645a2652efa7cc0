package logevent

import (
	"errors"
	"testing"
	"time"
)

// TestRender verifies hole substitution, escaping and verbatim fallbacks.
func TestRender(t *testing.T) {
	t.Parallel()

	props := Props(
		"User", "alice",
		"Count", 3,
		"Tags", []any{"a", "b"},
		"Point", map[string]any{"X": 1, "Y": 2},
	)

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{name: "no holes", template: "hello", want: "hello"},
		{name: "simple", template: "user {User} logged in", want: "user alice logged in"},
		{name: "destructure and stringify prefixes", template: "{@User}/{$Count}", want: "alice/3"},
		{name: "format and alignment ignored", template: "{Count:000} {Count,5}", want: "3 3"},
		{name: "escaped braces", template: "{{User}} is {User}", want: "{User} is alice"},
		{name: "missing property verbatim", template: "hi {Nobody}", want: "hi {Nobody}"},
		{name: "invalid hole verbatim", template: "json {\"a\":1}", want: "json {\"a\":1}"},
		{name: "unterminated", template: "oops {User", want: "oops {User"},
		{name: "sequence", template: "{Tags}", want: "[a, b]"},
		{name: "structure", template: "{Point}", want: "{ X: 1, Y: 2 }"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := Render(tt.template, props); got != tt.want {
				t.Fatalf("Render(%q) = %q, want %q", tt.template, got, tt.want)
			}
		})
	}
}

// TestParseLevel checks full names, abbreviations and the error path.
func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want Level
	}{
		{"Information", Information},
		{"inf", Information},
		{"WRN", Warning},
		{"error", Error},
		{"Fatal", Fatal},
		{"vrb", Verbose},
		{"Debug", Debug},
	}
	for _, tc := range cases {
		got, err := ParseLevel(tc.in)
		if err != nil {
			t.Fatalf("ParseLevel(%q) error = %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("ParseLevel(loud) error = nil, want non-nil")
	}
	if Warning.String() != "Warning" {
		t.Fatalf("Warning.String() = %q", Warning.String())
	}
}

// TestResolve walks nested structures and dictionaries.
func TestResolve(t *testing.T) {
	t.Parallel()

	ev := &Event{Properties: []Property{
		{Name: "Property1", Value: Structure{Properties: []Property{
			{Name: "SubProperty1", Value: Scalar{V: "X"}},
		}}},
		{Name: "Headers", Value: Dictionary{Entries: []DictionaryEntry{
			{Key: Scalar{V: "Accept"}, Value: Scalar{V: "text/plain"}},
		}}},
		{Name: "Flat", Value: Scalar{V: 1}},
	}}

	tests := []struct {
		name   string
		path   []string
		want   any
		wantOK bool
	}{
		{name: "structure", path: []string{"Property1", "SubProperty1"}, want: "X", wantOK: true},
		{name: "dictionary", path: []string{"Headers", "Accept"}, want: "text/plain", wantOK: true},
		{name: "missing leaf", path: []string{"Property1", "Missing"}, wantOK: false},
		{name: "missing root", path: []string{"Nope", "SubProperty1"}, wantOK: false},
		{name: "through scalar", path: []string{"Flat", "X"}, wantOK: false},
		{name: "empty path", path: nil, wantOK: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v, ok := ev.Resolve(tt.path)
			if ok != tt.wantOK {
				t.Fatalf("Resolve(%v) ok = %v, want %v", tt.path, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			s, isScalar := v.(Scalar)
			if !isScalar || s.V != tt.want {
				t.Fatalf("Resolve(%v) = %#v, want %v", tt.path, v, tt.want)
			}
		})
	}
}

// TestDecodeJSON verifies reserved keys, property order and nesting.
func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	in := `{"@t":"2024-05-01T10:00:00.5Z","@mt":"Hello {Name}","@l":"wrn","@x":"boom",` +
		`"Name":"bob","Zeta":1.5,"Alpha":{"$type":"Req","Path":"/x","Ids":[1,2]},"@@odd":true,"Nothing":null}`

	ev, err := DecodeJSON([]byte(in))
	if err != nil {
		t.Fatalf("DecodeJSON() error = %v", err)
	}
	wantTS := time.Date(2024, 5, 1, 10, 0, 0, 500_000_000, time.UTC)
	if !ev.Timestamp.Equal(wantTS) {
		t.Fatalf("Timestamp = %v, want %v", ev.Timestamp, wantTS)
	}
	if ev.Level != Warning {
		t.Fatalf("Level = %v, want Warning", ev.Level)
	}
	if ev.ExceptionText() != "boom" {
		t.Fatalf("Exception = %q, want boom", ev.ExceptionText())
	}
	if got := ev.RenderMessage(); got != "Hello bob" {
		t.Fatalf("RenderMessage() = %q", got)
	}

	names := make([]string, 0, len(ev.Properties))
	for _, p := range ev.Properties {
		names = append(names, p.Name)
	}
	wantNames := []string{"Name", "Zeta", "Alpha", "@odd", "Nothing"}
	if len(names) != len(wantNames) {
		t.Fatalf("property names = %v, want %v", names, wantNames)
	}
	for i := range names {
		if names[i] != wantNames[i] {
			t.Fatalf("property[%d] = %q, want %q", i, names[i], wantNames[i])
		}
	}

	alpha, _ := ev.Property("Alpha")
	st, ok := alpha.(Structure)
	if !ok || st.TypeTag != "Req" || len(st.Properties) != 2 {
		t.Fatalf("Alpha = %#v, want structure tagged Req with 2 properties", alpha)
	}
	ids, _ := ev.Resolve([]string{"Alpha", "Ids"})
	if seq, ok := ids.(Sequence); !ok || len(seq.Elements) != 2 || seq.Elements[0].(Scalar).V != int64(1) {
		t.Fatalf("Alpha.Ids = %#v", ids)
	}
}

// TestDecodeJSONRenderedMessageOnly checks that @m is kept literal.
func TestDecodeJSONRenderedMessageOnly(t *testing.T) {
	t.Parallel()

	ev, err := DecodeJSON([]byte(`{"@m":"literal {braces}","User":"x"}`))
	if err != nil {
		t.Fatalf("DecodeJSON() error = %v", err)
	}
	if got := ev.RenderMessage(); got != "literal {braces}" {
		t.Fatalf("RenderMessage() = %q, want literal text", got)
	}
	if ev.Level != Information {
		t.Fatalf("Level = %v, want Information", ev.Level)
	}
	if ev.Timestamp.IsZero() {
		t.Fatalf("Timestamp should default to now")
	}
}

// TestDecodeJSONErrors covers malformed input.
func TestDecodeJSONErrors(t *testing.T) {
	t.Parallel()

	for _, in := range []string{``, `[]`, `{"@t":"yesterday"}`, `{"@l":"loud"}`, `{"a":`} {
		if _, err := DecodeJSON([]byte(in)); err == nil {
			t.Fatalf("DecodeJSON(%q) error = nil, want non-nil", in)
		}
	}
}

// TestFromGo checks conversion of maps, slices and passthrough values.
func TestFromGo(t *testing.T) {
	t.Parallel()

	v := FromGo(map[string]any{"b": 2, "a": []int{1}})
	st, ok := v.(Structure)
	if !ok || len(st.Properties) != 2 || st.Properties[0].Name != "a" {
		t.Fatalf("FromGo(map) = %#v, want sorted structure", v)
	}
	if _, ok := st.Properties[0].Value.(Sequence); !ok {
		t.Fatalf("FromGo([]int) should produce a Sequence")
	}
	if d, ok := FromGo(map[int]string{2: "b", 1: "a"}).(Dictionary); !ok || d.Entries[0].Key.V != 1 {
		t.Fatalf("FromGo(map[int]string) should produce an ordered Dictionary")
	}
	if s, ok := FromGo(errors.New("x")).(Scalar); !ok || s.String() != "x" {
		t.Fatalf("FromGo(error) should produce a Scalar")
	}
	same := Scalar{V: 1}
	if FromGo(same) != Value(same) {
		t.Fatalf("FromGo(Value) should return the value unchanged")
	}
}
