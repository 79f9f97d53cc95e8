package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Ratio returns the Levenshtein similarity of a and b on a 0..100 scale.
func Ratio(a, b string) int {
	if a == b {
		return 100
	}
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := max(la, lb)
	if longest == 0 {
		return 100
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 100 * (longest - dist) / longest
}

// PartialRatio scores alias against text: the best of the whole-text ratio
// and, for every window of consecutive words as long as alias, the window
// ratio and the ratio of each rune substring of alias length. Substrings
// let inflected forms ("курганом", "курганской") reach the alias.
func PartialRatio(text, alias string) int {
	best := Ratio(text, alias)
	words := strings.Fields(text)
	size := len(strings.Fields(alias))
	if size == 0 || size > len(words) {
		return best
	}
	for i := 0; i+size <= len(words) && best < 100; i++ {
		best = max(best, windowRatio(strings.Join(words[i:i+size], " "), alias))
	}
	return best
}

func windowRatio(window, alias string) int {
	best := Ratio(window, alias)
	w := []rune(window)
	n := utf8.RuneCountInString(alias)
	for j := 0; j+n <= len(w) && len(w) > n && best < 100; j++ {
		best = max(best, Ratio(string(w[j:j+n]), alias))
	}
	return best
}
