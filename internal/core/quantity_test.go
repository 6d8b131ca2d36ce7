package core

import "testing"

func TestParseQty(t *testing.T) {
	tests := []struct {
		input    string
		wantQty  float64
		wantUnit string
	}{
		{"5 pcs", 5, "pcs"},
		{"2.5", 2.5, ""},
		{"1,000 ea", 1000, "ea"},
		{"3 each spare", 3, "each"},
		{"  4   Nos ", 4, "Nos"},
		{"", 1, ""},
		{"   ", 1, ""},
		{"0", 1, ""},
		{"-3", 1, ""},
		{"abc", 1, ""},
		{"0 pcs", 1, ""},
		{"x pcs", 1, ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			qty, unit := ParseQty(tt.input)
			if qty != tt.wantQty || unit != tt.wantUnit {
				t.Errorf("ParseQty(%q) = (%v, %q), want (%v, %q)", tt.input, qty, unit, tt.wantQty, tt.wantUnit)
			}
			if NormalizeQty(tt.input) <= 0 {
				t.Errorf("NormalizeQty(%q) is not positive", tt.input)
			}
		})
	}
}

func TestMapQtyUOM(t *testing.T) {
	tests := []struct {
		hint string
		want string
	}{
		{"pcs", CountUOM},
		{"PCS", CountUOM},
		{"pc", CountUOM},
		{" ea ", CountUOM},
		{"each", CountUOM},
		{"Nos", CountUOM},
		{"no", CountUOM},
		{"kg", ""},
		{"m", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := MapQtyUOM(tt.hint); got != tt.want {
			t.Errorf("MapQtyUOM(%q) = %q, want %q", tt.hint, got, tt.want)
		}
	}
}

func TestParseQtyMapsCountUnit(t *testing.T) {
	qty, hint := ParseQty("5 pcs")
	if qty != 5 || MapQtyUOM(hint) != "Nos" {
		t.Errorf("5 pcs -> (%v, %q), want (5, Nos)", qty, MapQtyUOM(hint))
	}
}
