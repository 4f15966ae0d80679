// Package normalize provides text folding and input cleanup shared by search,
// validation, and the services.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

//nolint:gochecknoglobals // cases.Caser is safe for reuse after construction
var folder = cases.Fold()

// Fold returns s in a form suitable for case-insensitive comparison.
// Full-width ASCII and half-width katakana are unified through NFKC before
// Unicode case folding, so "ＳＦ" and "sf" compare equal.
func Fold(s string) string {
	return folder.String(norm.NFKC.String(s))
}

// Contains reports whether needle occurs in haystack after folding both.
// An empty needle matches everything.
func Contains(haystack, needle string) bool {
	needle = Fold(strings.TrimSpace(needle))
	if needle == "" {
		return true
	}
	return strings.Contains(Fold(haystack), needle)
}

// Trim trims surrounding whitespace, including the ideographic space.
func Trim(s string) string {
	return strings.TrimFunc(s, unicode.IsSpace)
}

// OptionalString trims s and returns nil when nothing is left.
func OptionalString(s string) *string {
	s = Trim(s)
	if s == "" {
		return nil
	}
	return &s
}

// Tags trims each tag, strips a leading '#' or '＃', drops empties, and
// removes duplicates while keeping first-seen order.
func Tags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = Trim(tag)
		tag = strings.TrimLeft(tag, "#＃")
		tag = Trim(tag)
		if tag == "" {
			continue
		}
		key := Fold(tag)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// Email lowercases and trims an email address for lookups.
func Email(email string) string {
	return strings.ToLower(Trim(email))
}

// RuneLen returns the number of characters in s.
func RuneLen(s string) int {
	return len([]rune(s))
}
