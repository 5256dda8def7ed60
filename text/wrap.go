package text

import (
	"fmt"
	"strings"
)

// Mode selects a line wrapping strategy.
type Mode uint8

const (
	// ModeCut chops the text every row length characters.
	ModeCut Mode = iota
	// ModeHyphenate keeps words whole and breaks overlong ones with a hyphen.
	ModeHyphenate
	// ModeWordWrap keeps words whole and hard-cuts overlong ones.
	ModeWordWrap
)

func (m Mode) String() string {
	switch m {
	case ModeCut:
		return "cut"
	case ModeHyphenate:
		return "hyphenate"
	case ModeWordWrap:
		return "word-wrap"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// Wrap breaks the already escaped text s into rows of at most rowLength
// characters using mode.
func Wrap(mode Mode, s string, rowLength int) []Row {
	switch mode {
	case ModeCut:
		return Cut(s, rowLength)
	case ModeHyphenate:
		return Hyphenate(Tokenize(s), rowLength)
	case ModeWordWrap:
		return WordWrap(Tokenize(s), rowLength)
	default:
		panic("text: unknown wrap mode " + mode.String())
	}
}

// Cut splits s into chunks of rowLength characters, ignoring words. The last
// chunk may be shorter. Every row counts as splitting a word, and every row
// but the first as a continuation.
func Cut(s string, rowLength int) []Row {
	checkRowLength(rowLength)
	var rows []Row
	for s != "" {
		var head string
		head, s = cut(s, rowLength)
		r := newRow(head)
		r.SplitsWord = true
		r.Continuation = len(rows) > 0
		rows = append(rows, r)
	}
	return checkRows(rows, rowLength)
}

// Hyphenate fills rows greedily with whole words. A word longer than a row
// is cut every rowLength-1 characters and the fragment gets a trailing '-'.
// With a row length of 1 there is no room for the hyphen: the word is cut one
// character at a time and those rows do not count as splitting it.
//
// Spacing that does not fit moves to the next row with the words after it.
func Hyphenate(tokens []Token, rowLength int) []Row {
	checkRowLength(rowLength)
	b := rowBuilder{rowLength: rowLength, carrySpacing: true}
	b.fill(tokens, func(word string) string {
		for runeLen(word) > rowLength {
			var head string
			if rowLength < 2 {
				head, word = cut(word, rowLength)
				b.place(head, false)
				b.close(false)
				continue
			}
			head, word = cut(word, rowLength-1)
			b.place(head+"-", false)
			b.close(true)
		}
		return word
	})
	return checkRows(b.rows, rowLength)
}

// WordWrap fills rows greedily with whole words and records them in
// Row.Words. A word longer than a row is hard-cut across as many rows as it
// needs. Spacing that does not fit is dropped at the row break.
func WordWrap(tokens []Token, rowLength int) []Row {
	checkRowLength(rowLength)
	b := rowBuilder{rowLength: rowLength, recordWords: true}
	b.fill(tokens, func(word string) string {
		for runeLen(word) > rowLength {
			var head string
			head, word = cut(word, rowLength)
			b.place(head, false)
			b.close(true)
		}
		return word
	})
	return checkRows(b.rows, rowLength)
}

// rowBuilder accumulates the row being filled by a greedy strategy.
type rowBuilder struct {
	rowLength    int
	recordWords  bool
	carrySpacing bool

	rows         []Row
	content      strings.Builder
	width        int
	words        []string
	continuation bool
}

// fill runs the greedy loop over tokens. split is called with an empty
// current row and a word wider than the row; it must emit the leading
// fragments and return the remainder, which fits on a row.
func (b *rowBuilder) fill(tokens []Token, split func(word string) string) {
	for _, tok := range tokens {
		if tok.Kind == Spacing {
			b.space(tok.Text)
			continue
		}
		word := tok.Text
		if b.width+runeLen(word) <= b.rowLength {
			b.place(word, true)
			continue
		}
		if b.width > 0 {
			b.close(false)
		}
		if runeLen(word) <= b.rowLength {
			b.place(word, true)
			continue
		}
		b.place(split(word), false)
	}
	if b.width > 0 {
		b.close(false)
	}
}

// space appends a spacing run verbatim when it fits. Otherwise the run breaks
// the row and is dropped, or with carrySpacing starts the next row, clipped to
// the row length.
func (b *rowBuilder) space(run string) {
	if b.width+runeLen(run) <= b.rowLength {
		b.place(run, false)
		return
	}
	if b.width > 0 {
		b.close(false)
	}
	if !b.carrySpacing {
		return
	}
	run, _ = cut(run, b.rowLength)
	b.place(run, false)
}

func (b *rowBuilder) place(s string, word bool) {
	b.content.WriteString(s)
	b.width += runeLen(s)
	if word && b.recordWords {
		b.words = append(b.words, s)
	}
}

// close appends the current row. splits marks it as ending inside a word, so
// the row after it becomes a continuation.
func (b *rowBuilder) close(splits bool) {
	r := newRow(b.content.String())
	r.SplitsWord = splits
	r.Continuation = b.continuation
	r.Words = b.words
	b.rows = append(b.rows, r)

	b.continuation = splits
	b.content.Reset()
	b.width = 0
	b.words = nil
}
