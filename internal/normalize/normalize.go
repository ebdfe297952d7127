// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package normalize coerces loosely typed request and file values into the
// bounded shapes the rest of the control plane works with. Every helper
// falls back instead of failing.
package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Token normalizes a string token for matching:
// - trims Unicode whitespace + invisible edge characters
// - lowercases for case-insensitive comparisons
func Token(s string) string {
	return strings.ToLower(strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) ||
			r == '\u200B' || // Zero Width Space
			r == '\u200C' || // Zero Width Non-Joiner
			r == '\u200D' || // Zero Width Joiner
			r == '\uFEFF' // Zero Width Non-Breaking Space (BOM)
	}))
}

// Number parses a JSON-ish value (number, numeric string, bool) into a float.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32:
		return Number(float64(n))
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Int truncates v toward zero and clamps it into [lo, hi]. Unparseable input
// yields fallback unchanged.
func Int(v any, lo, hi, fallback int) int {
	f, ok := Number(v)
	if !ok {
		return fallback
	}
	// Clamp before converting; int(f) is undefined past the int range.
	f = math.Max(float64(lo), math.Min(float64(hi), math.Trunc(f)))
	return int(f)
}

// Float clamps v into [lo, hi]. Unparseable input yields fallback unchanged.
func Float(v any, lo, hi, fallback float64) float64 {
	f, ok := Number(v)
	if !ok {
		return fallback
	}
	return ClampFloat(f, lo, hi)
}

// ClampInt bounds n to [lo, hi].
func ClampInt(n, lo, hi int) int {
	return max(lo, min(hi, n))
}

// ClampFloat bounds f to [lo, hi].
func ClampFloat(f, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, f))
}

// Round rounds f to the given number of decimal places.
func Round(f float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(f*p) / p
}

// Truthy reports the truthiness of a decoded JSON value: zero values, empty
// strings and empty collections are false.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		f, ok := Number(v)
		return ok && f != 0
	}
}

// String renders a decoded JSON value as text. nil becomes "".
func String(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "True"
		}
		return "False"
	default:
		return fmt.Sprint(t)
	}
}

// CleanField trims v and rejects values that could break out of a generated
// nginx directive (newline, carriage return, semicolon) by returning "".
func CleanField(v any) string {
	s := strings.TrimSpace(String(v))
	if strings.ContainsAny(s, "\n\r;") {
		return ""
	}
	return s
}

// ParseIntPtr parses an optional numeric text node, truncating decimals and
// saturating at the int32 range.
func ParseIntPtr(s *string) *int {
	if s == nil {
		return nil
	}
	f, ok := Number(*s)
	if !ok {
		return nil
	}
	n := Int(f, math.MinInt32, math.MaxInt32, 0)
	return &n
}

// ParseFloatPtr parses an optional numeric text node.
func ParseFloatPtr(s *string) *float64 {
	if s == nil {
		return nil
	}
	f, ok := Number(*s)
	if !ok {
		return nil
	}
	return &f
}
