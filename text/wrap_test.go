package text_test

import (
	"strings"
	"testing"

	"github.com/harveysanders/splitflap/text"
)

var wrapSamples = []string{
	"",
	"HELLO WORLD",
	"SPLITFLAP",
	"ABCDEFGH",
	"THE QUICK BROWN FOX JUMPS OVER THE LAZY DOG",
	"A   B    C",
	"   LEADING SPACES",
	"TRAILING SPACES   ",
	"SUPERCALIFRAGILISTICEXPIALIDOCIOUS IS LONG",
	"X Y Z",
	"ÜBERMÄSSIG LANGE WÖRTER",
	"A                        B",
}

func contents(rows []text.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Content
	}
	return out
}

func TestWrapRowLengthBound(t *testing.T) {
	modes := []text.Mode{text.ModeCut, text.ModeHyphenate, text.ModeWordWrap}
	for _, mode := range modes {
		for rowLength := 1; rowLength <= 12; rowLength++ {
			for _, s := range wrapSamples {
				for i, r := range text.Wrap(mode, s, rowLength) {
					if r.Len() > rowLength {
						t.Errorf("%v/%d %q: row %d %q is longer than the row", mode, rowLength, s, i, r.Content)
					}
				}
			}
		}
	}
}

func TestWrapContinuationFollowsSplit(t *testing.T) {
	modes := []text.Mode{text.ModeCut, text.ModeHyphenate, text.ModeWordWrap}
	for _, mode := range modes {
		for rowLength := 1; rowLength <= 8; rowLength++ {
			for _, s := range wrapSamples {
				rows := text.Wrap(mode, s, rowLength)
				for i := range rows {
					prevSplits := i > 0 && rows[i-1].SplitsWord
					if rows[i].Continuation != prevSplits {
						t.Errorf("%v/%d %q: row %d continuation=%v, previous splits=%v",
							mode, rowLength, s, i, rows[i].Continuation, prevSplits)
					}
				}
			}
		}
	}
}

func TestCut(t *testing.T) {
	rows := text.Cut("ABCDEFGH", 4)
	if got := contents(rows); strings.Join(got, "|") != "ABCD|EFGH" {
		t.Fatalf("Cut rows = %q", got)
	}
	for i, r := range rows {
		if !r.SplitsWord {
			t.Errorf("row %d not marked as splitting a word", i)
		}
		if r.Centerable() {
			t.Errorf("row %d is centerable", i)
		}
	}
	if rows[0].Continuation || !rows[1].Continuation {
		t.Errorf("continuation flags = %v, %v", rows[0].Continuation, rows[1].Continuation)
	}

	pages := text.Paginate(rows, 1, 4, true)
	if strings.Join(pages, "|") != "ABCD|EFGH" {
		t.Errorf("pages = %q", pages)
	}
}

func TestCutKeepsSpaces(t *testing.T) {
	got := contents(text.Cut("AB CD EF", 3))
	want := []string{"AB ", "CD ", "EF"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("Cut = %q, want %q", got, want)
	}
}

func TestHyphenate(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		rowLength int
		want      []string
	}{
		{"scenario B", "SPLITFLAP", 5, []string{"SPLI-", "TFLAP"}},
		{"multiple cuts", "ABCDEFGHIJ", 4, []string{"ABC-", "DEF-", "GHIJ"}},
		{"words fit", "AB CD EF", 5, []string{"AB CD", " EF"}},
		{"long word after short", "AB SPLITFLAP", 5, []string{"AB ", "SPLI-", "TFLAP"}},
		{"remainder takes spacing", "ABCDEF G", 4, []string{"ABC-", "DEF ", "G"}},
		{"spacing preserved when it fits", "A  B", 5, []string{"A  B"}},
		{"spacing carried to next row", "HELLO  WORLD", 6, []string{"HELLO", "  ", "WORLD"}},
		{"wide run clipped", "A      B", 4, []string{"A", "    ", "B"}},
		{"row length one", "ABC", 1, []string{"A", "B", "C"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := contents(text.Hyphenate(text.Tokenize(tt.in), tt.rowLength))
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("Hyphenate(%q, %d) = %q, want %q", tt.in, tt.rowLength, got, tt.want)
			}
		})
	}
}

func TestHyphenateScenarioBFlags(t *testing.T) {
	rows := text.Hyphenate(text.Tokenize("SPLITFLAP"), 5)
	if len(rows) != 2 {
		t.Fatalf("got %d rows", len(rows))
	}
	if !rows[0].SplitsWord || rows[0].Continuation {
		t.Errorf("first row flags: %+v", rows[0])
	}
	if rows[1].SplitsWord || !rows[1].Continuation {
		t.Errorf("second row flags: %+v", rows[1])
	}
}

func TestHyphenateSplitRowsEndWithHyphen(t *testing.T) {
	for rowLength := 1; rowLength <= 10; rowLength++ {
		for _, s := range wrapSamples {
			rows := text.Hyphenate(text.Tokenize(s), rowLength)
			for i, r := range rows {
				if !r.SplitsWord {
					continue
				}
				if !strings.HasSuffix(r.Content, "-") {
					t.Errorf("%d %q: split row %d %q has no hyphen", rowLength, s, i, r.Content)
				}
				if i+1 < len(rows) && !rows[i+1].Continuation {
					t.Errorf("%d %q: row %d after a split is not a continuation", rowLength, s, i+1)
				}
			}
		}
	}
}

func TestWordWrap(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		rowLength int
		want      []string
	}{
		{"scenario A", "HELLO WORLD", 10, []string{"HELLO ", "WORLD"}},
		{"fills rows", "THE QUICK BROWN FOX", 10, []string{"THE QUICK ", "BROWN FOX"}},
		{"exact fit", "ABCDE", 5, []string{"ABCDE"}},
		{"hard cut", "ABCDEFGHIJKL", 5, []string{"ABCDE", "FGHIJ", "KL"}},
		{"hard cut remainder takes words", "ABCDEFG H", 5, []string{"ABCDE", "FG H"}},
		{"inner run kept", "A   B", 10, []string{"A   B"}},
		{"leading run kept", "  AB", 10, []string{"  AB"}},
		{"wide run becomes break", "A" + strings.Repeat(" ", 12) + "B", 10, []string{"A", "B"}},
		{"trailing run kept", "AB   ", 10, []string{"AB   "}},
		{"run that overflows is dropped", "AB   ", 4, []string{"AB"}},
		{"run before long word kept", "A  BCDEF", 5, []string{"A  ", "BCDEF"}},
		{"only spaces", "     ", 3, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := contents(text.WordWrap(text.Tokenize(tt.in), tt.rowLength))
			if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
				t.Errorf("WordWrap(%q, %d) = %q, want %q", tt.in, tt.rowLength, got, tt.want)
			}
		})
	}
}

func TestHyphenateRowLengthOne(t *testing.T) {
	rows := text.Hyphenate(text.Tokenize("ABC"), 1)
	if got := contents(rows); strings.Join(got, "|") != "A|B|C" {
		t.Fatalf("rows = %q", got)
	}
	for i, r := range rows {
		if r.SplitsWord || r.Continuation {
			t.Errorf("row %d = %+v, want no split flags without a hyphen", i, r)
		}
	}
}

func TestWordWrapRecordsWords(t *testing.T) {
	rows := text.WordWrap(text.Tokenize("AB CD   EFGHIJK"), 6)
	if got := contents(rows); strings.Join(got, "|") != "AB CD|EFGHIJ|K" {
		t.Fatalf("rows = %q", contents(rows))
	}
	if strings.Join(rows[0].Words, ",") != "AB,CD" {
		t.Errorf("row 0 words = %q", rows[0].Words)
	}
	if !rows[1].SplitsWord || len(rows[1].Words) != 0 {
		t.Errorf("row 1 = %+v", rows[1])
	}
	if !rows[2].Continuation || len(rows[2].Words) != 0 {
		t.Errorf("row 2 = %+v", rows[2])
	}
}

func TestWordWrapTrailingSpacingCenters(t *testing.T) {
	rows := text.WordWrap(text.Tokenize("A  BCDEF"), 5)
	if !rows[0].Centerable() {
		t.Errorf("row %+v is not centerable", rows[0])
	}
	pages := text.Paginate(rows, 1, 5, true)
	if len(pages) != 2 || pages[0] != "  A  " || pages[1] != "BCDEF" {
		t.Errorf("pages = %q, want [\"  A  \" \"BCDEF\"]", pages)
	}
}

func TestWordWrapTripleSpaces(t *testing.T) {
	rows := text.WordWrap(text.Tokenize("A   B C  D"), 10)
	if len(rows) != 1 || !rows[0].TripleSpaces {
		t.Fatalf("rows = %+v", rows)
	}
	rows = text.WordWrap(text.Tokenize("A  B"), 10)
	if rows[0].TripleSpaces {
		t.Errorf("double space flagged as triple: %+v", rows[0])
	}
}

func TestWordWrapNeverSplitsShortWords(t *testing.T) {
	for rowLength := 1; rowLength <= 12; rowLength++ {
		for _, s := range wrapSamples {
			fits := map[string]bool{}
			for _, tok := range text.Tokenize(s) {
				if tok.Kind == text.Word && tok.Len() <= rowLength {
					fits[tok.Text] = true
				}
			}
			for _, r := range text.WordWrap(text.Tokenize(s), rowLength) {
				for _, w := range r.Words {
					delete(fits, w)
				}
			}
			for w := range fits {
				t.Errorf("%d %q: word %q was not placed whole", rowLength, s, w)
			}
		}
	}
}

func TestWrapPanicsOnBadRowLength(t *testing.T) {
	defer func() {
		r := recover()
		if _, ok := r.(*text.LayoutError); !ok {
			t.Fatalf("recovered %v, want *text.LayoutError", r)
		}
	}()
	text.Wrap(text.ModeWordWrap, "HELLO", 0)
}
