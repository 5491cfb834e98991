// Package phonenumber normalizes tenant phone numbers to a canonical
// E.164-shaped string, per spec §3: "any two inputs normalizing to the
// same value denote the same tenant."
package phonenumber

import "strings"

// Normalize strips spaces and dashes and requires a leading "+". It is idempotent: Normalize(Normalize(x)) == Normalize(x) for any input (P8).
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case ' ', '-', '(', ')':
			continue
		default:
			b.WriteRune(r)
		}
	}
	s = b.String()
	if s == "" {
		return s
	}
	if s[0] != '+' {
		s = "+" + s
	}
	return s
}

// Valid reports whether a normalized number looks like a plausible
// E.164 number: a leading "+" followed by 8-15 digits.
func Valid(normalized string) bool {
	if len(normalized) < 9 || len(normalized) > 16 {
		return false
	}
	if normalized[0] != '+' {
		return false
	}
	for _, r := range normalized[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
