package text

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// maxCenterDensity is the largest share of a row's content that may be taken
// by complete words for the row to still be centered.
const maxCenterDensity = 0.6

// Row is one line of the display, at most one row length wide.
type Row struct {
	Content string
	// Continuation marks a row that carries the rest of a word split on the
	// previous row.
	Continuation bool
	// SplitsWord marks a row whose last word continues on the next row.
	SplitsWord bool
	// TripleSpaces is set when Content holds three or more spaces in a row.
	TripleSpaces bool
	// Words lists the words placed whole on the row. Only the WordWrap
	// strategy records them.
	Words []string
}

func newRow(content string) Row {
	return Row{
		Content:      content,
		TripleSpaces: strings.Contains(content, "   "),
	}
}

// Len returns the width of the row content in display cells.
func (r Row) Len() int { return runeLen(r.Content) }

// Blank reports whether the row shows nothing but spaces.
func (r Row) Blank() bool { return strings.Trim(r.Content, " ") == "" }

// Centerable reports whether the row may be centered. Blank rows always may.
// Rows that split a word, continue one, or carry a triple space may not; the
// rest may when complete words fill no more than 60% of the content.
func (r Row) Centerable() bool {
	if r.Blank() {
		return true
	}
	if r.TripleSpaces || r.SplitsWord || r.Continuation {
		return false
	}
	words := 0
	for _, w := range r.Words {
		words += runeLen(w)
	}
	return float64(words)/float64(r.Len()) <= maxCenterDensity
}

// LayoutError reports a broken layout invariant. Layout functions panic with
// it instead of returning it: it can only be caused by a bug.
type LayoutError struct {
	Row       int
	Content   string
	RowLength int
}

func (e *LayoutError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("text: invalid row length %d", e.RowLength)
	}
	return fmt.Sprintf("text: row %d is %d cells wide, limit is %d: %q",
		e.Row, runeLen(e.Content), e.RowLength, e.Content)
}

func checkRowLength(rowLength int) {
	if rowLength < 1 {
		panic(&LayoutError{Row: -1, RowLength: rowLength})
	}
}

func checkRows(rows []Row, rowLength int) []Row {
	for i, r := range rows {
		if r.Len() > rowLength {
			panic(&LayoutError{Row: i, Content: r.Content, RowLength: rowLength})
		}
	}
	return rows
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

// cut splits s after n runes.
func cut(s string, n int) (head, tail string) {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos], s[pos:]
		}
		i++
	}
	return s, ""
}
