// Package numparse reads numbers out of partially typed form input the way a
// browser's parseFloat and parseInt do: leading whitespace is skipped and the
// longest numeric prefix wins, so "12abc" is 12 and "95 min" is 95.
package numparse

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	floatPrefix = regexp.MustCompile(`^\s*[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)
	intPrefix   = regexp.MustCompile(`^\s*[+-]?\d+`)
)

// Float parses the leading decimal number of raw. "", "-" and "abc" are
// invalid, as is anything overflowing to infinity.
func Float(raw string) (float64, bool) {
	m := floatPrefix.FindString(raw)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(m), 64)
	if err != nil || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Trunc is Float truncated toward zero. Values outside the int64 range are
// invalid.
func Trunc(raw string) (int64, bool) {
	v, ok := Float(raw)
	if !ok {
		return 0, false
	}
	t := math.Trunc(v)
	if t >= math.MaxInt64 || t <= math.MinInt64 {
		return 0, false
	}
	return int64(t), true
}

// Int parses the leading run of digits of raw, stopping at a decimal point
// or exponent: "7th" is 7 and "1e3" is 1.
func Int(raw string) (int64, bool) {
	m := intPrefix.FindString(raw)
	if m == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(m), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
