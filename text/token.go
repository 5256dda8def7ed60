package text

import "strings"

// TokenKind tells words apart from runs of spaces.
type TokenKind uint8

const (
	Word TokenKind = iota
	Spacing
)

func (k TokenKind) String() string {
	switch k {
	case Word:
		return "word"
	case Spacing:
		return "spacing"
	default:
		return "unknown"
	}
}

// Token is a maximal run of either non-space or space characters.
// Only the ASCII space separates words; tabs and newlines are word characters.
type Token struct {
	Kind TokenKind
	Text string
}

// Len returns the number of display cells the token occupies.
func (t Token) Len() int { return runeLen(t.Text) }

// Tokenize splits s into alternating Word and Spacing tokens. Joining the
// Text of every token yields s again.
func Tokenize(s string) []Token {
	var tokens []Token
	start := 0
	for i := 0; i < len(s); {
		kind := kindOf(s[i])
		j := i + 1
		for j < len(s) && kindOf(s[j]) == kind {
			j++
		}
		tokens = append(tokens, Token{Kind: kind, Text: s[start:j]})
		start, i = j, j
	}
	return tokens
}

// Join concatenates the text of tokens.
func Join(tokens []Token) string {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteString(t.Text)
	}
	return b.String()
}

// kindOf works on bytes: the space is ASCII and never appears inside a
// multi-byte UTF-8 sequence.
func kindOf(c byte) TokenKind {
	if c == ' ' {
		return Spacing
	}
	return Word
}
