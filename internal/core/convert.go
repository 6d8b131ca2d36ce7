package core

// convert.go turns spreadsheet cell text into numbers.
//
// Parts lists exported from PLM tools carry thousands separators, stray
// whitespace and the occasional accounting-style "(1.5)". Unusable input never
// errors: callers get ok=false (ParseNumber) or zero (ToFloat, ToInt) and apply
// their own default.

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// numericRegex validates a cleaned number: integers, decimals, scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// ParseNumber parses s after removing thousands separators and accounting
// parentheses. ok is false for empty or non-numeric input.
func ParseNumber(s string) (v float64, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "_", "")
	s = strings.TrimSpace(s)

	if !numericRegex.MatchString(s) {
		return 0, false
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	if negative {
		v = -v
	}
	return v, true
}

// ToFloat parses s, returning 0 when it is not a number.
func ToFloat(s string) float64 {
	v, _ := ParseNumber(s)
	return v
}

// ToInt parses s and truncates toward zero, returning 0 when it is not a
// number. "2.0" and "2.7" both give 2.
func ToInt(s string) int {
	v, ok := ParseNumber(s)
	if !ok {
		return 0
	}
	if v > math.MaxInt32 || v < math.MinInt32 {
		return 0
	}
	return int(v)
}
