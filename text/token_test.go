package text_test

import (
	"reflect"
	"testing"

	"github.com/harveysanders/splitflap/text"
)

func TestTokenize(t *testing.T) {
	w := func(s string) text.Token { return text.Token{Kind: text.Word, Text: s} }
	sp := func(s string) text.Token { return text.Token{Kind: text.Spacing, Text: s} }

	tests := []struct {
		name string
		in   string
		want []text.Token
	}{
		{"empty", "", nil},
		{"single word", "HELLO", []text.Token{w("HELLO")}},
		{"two words", "HELLO WORLD", []text.Token{w("HELLO"), sp(" "), w("WORLD")}},
		{"run kept", "A   B", []text.Token{w("A"), sp("   "), w("B")}},
		{"leading and trailing", "  A ", []text.Token{sp("  "), w("A"), sp(" ")}},
		{"only spaces", "    ", []text.Token{sp("    ")}},
		{"tab is a word char", "A\tB", []text.Token{w("A\tB")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := text.Tokenize(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTokenizeRoundTrip(t *testing.T) {
	inputs := []string{
		"", " ", "A", "A B", "  LEADING", "TRAILING  ", "A  B   C    D",
		"ÜBER  ALLES", "X Y Z ", "PUNCT, AND. MORE!",
	}
	for _, in := range inputs {
		tokens := text.Tokenize(in)
		if got := text.Join(tokens); got != in {
			t.Errorf("Join(Tokenize(%q)) = %q", in, got)
		}
		for i, tok := range tokens {
			if tok.Text == "" {
				t.Errorf("Tokenize(%q)[%d] is empty", in, i)
			}
			if i > 0 && tokens[i-1].Kind == tok.Kind {
				t.Errorf("Tokenize(%q): tokens %d and %d are both %v", in, i-1, i, tok.Kind)
			}
		}
	}
}
