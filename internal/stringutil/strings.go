// Package stringutil provides text normalization shared by the extractor,
// the knowledge matcher and the message builders.
package stringutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var (
	lower = cases.Lower(language.Russian)
	title = cases.Title(language.Russian)
)

// Normalize returns s in NFC form, lowercased and trimmed.
func Normalize(s string) string {
	return strings.TrimSpace(lower.String(norm.NFC.String(s)))
}

// StripPunctuation drops every rune that is not a letter, digit, underscore
// or whitespace.
func StripPunctuation(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, s)
}

// Clean normalizes s and strips punctuation.
func Clean(s string) string {
	return StripPunctuation(Normalize(s))
}

// Capitalize upper-cases the first letter of each word.
func Capitalize(s string) string {
	return title.String(s)
}

// Truncate shortens s to at most n runes, appending an ellipsis when cut.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n || len([]rune(s)) <= n {
		return s
	}
	r := []rune(s)
	if n == 1 {
		return string(r[:1])
	}
	return string(r[:n-1]) + "…"
}

// RuneLen returns the number of runes in s.
func RuneLen(s string) int {
	return len([]rune(s))
}
