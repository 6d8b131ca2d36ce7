package core

import "strings"

// CountUOM is the canonical unit for counted parts.
const CountUOM = "Nos"

// countUnitHints are the quantity suffixes that mean "count of parts".
var countUnitHints = map[string]bool{
	"each": true,
	"ea":   true,
	"nos":  true,
	"no":   true,
	"pcs":  true,
	"pc":   true,
}

// ParseQty splits a quantity cell such as "5 pcs" into its amount and unit
// hint. Empty, non-numeric and non-positive amounts give (1, "").
func ParseQty(cell string) (qty float64, unit string) {
	parts := strings.Fields(cell)
	if len(parts) == 0 {
		return 1, ""
	}

	v, ok := ParseNumber(parts[0])
	if !ok || v <= 0 {
		return 1, ""
	}

	if len(parts) > 1 {
		unit = parts[1]
	}
	return v, unit
}

// NormalizeQty returns only the amount part of ParseQty. It is always positive.
func NormalizeQty(cell string) float64 {
	qty, _ := ParseQty(cell)
	return qty
}

// MapQtyUOM maps a count-unit hint to CountUOM. Any other hint maps to "".
func MapQtyUOM(hint string) string {
	if countUnitHints[strings.ToLower(strings.TrimSpace(hint))] {
		return CountUOM
	}
	return ""
}
