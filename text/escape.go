// Package text lays free-form text out as fixed-width pages for a split-flap
// display.
//
// The pipeline is Escape → Tokenize → Wrap → Paginate. Every stage is a pure
// function; none of them log or keep state between calls.
package text

import (
	"strings"
	"unicode"
)

// Escape uppercases s, except that a character following a backslash is
// lowercased and the backslash dropped. A trailing backslash is kept as is.
func Escape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		if runes[i] == '\\' && i+1 < len(runes) {
			b.WriteRune(unicode.ToLower(runes[i+1]))
			i++
			continue
		}
		b.WriteRune(unicode.ToUpper(runes[i]))
	}
	return b.String()
}
