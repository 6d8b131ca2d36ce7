package core

import "testing"

// ----------------------------------------------------------------------------
// ParseNumber Tests
// ----------------------------------------------------------------------------

func TestParseNumber(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   float64
		wantOK bool
	}{
		// Valid
		{name: "integer", input: "123", want: 123, wantOK: true},
		{name: "zero", input: "0", want: 0, wantOK: true},
		{name: "negative", input: "-4", want: -4, wantOK: true},
		{name: "decimal", input: "12.5", want: 12.5, wantOK: true},
		{name: "leading decimal point", input: ".25", want: 0.25, wantOK: true},
		{name: "trailing decimal point", input: "5.", want: 5, wantOK: true},
		{name: "thousands separator", input: "1,234.5", want: 1234.5, wantOK: true},
		{name: "underscore separator", input: "1_000", want: 1000, wantOK: true},
		{name: "scientific", input: "1e3", want: 1000, wantOK: true},
		{name: "accounting negative", input: "(2.5)", want: -2.5, wantOK: true},
		{name: "surrounding whitespace", input: "  7 ", want: 7, wantOK: true},

		// Invalid
		{name: "empty", input: "", wantOK: false},
		{name: "whitespace", input: "   ", wantOK: false},
		{name: "letters", input: "abc", wantOK: false},
		{name: "trailing unit", input: "5pcs", wantOK: false},
		{name: "lone point", input: ".", wantOK: false},
		{name: "infinity", input: "Inf", wantOK: false},
		{name: "nan", input: "NaN", wantOK: false},
		{name: "overflow", input: "1e400", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseNumber(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParseNumber(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("ParseNumber(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestToFloat(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"2.75", 2.75},
		{"", 0},
		{"n/a", 0},
		{"1,500", 1500},
	}

	for _, tt := range tests {
		if got := ToFloat(tt.input); got != tt.want {
			t.Errorf("ToFloat(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestToInt(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"2", 2},
		{"2.0", 2},
		{"2.7", 2},
		{"-1", -1},
		{"", 0},
		{"x", 0},
		{"1e12", 0},
	}

	for _, tt := range tests {
		if got := ToInt(tt.input); got != tt.want {
			t.Errorf("ToInt(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}
