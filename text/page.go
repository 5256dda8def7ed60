package text

import "strings"

// Options configures Layout.
type Options struct {
	Mode          Mode
	ModulesPerRow int
	RowsPerPage   int
	Center        bool
}

// Layout runs the whole pipeline on raw text and returns the rendered pages.
// It panics with a *LayoutError if the options describe an impossible display.
func Layout(raw string, opts Options) []string {
	rows := Wrap(opts.Mode, Escape(raw), opts.ModulesPerRow)
	return Paginate(rows, opts.RowsPerPage, opts.ModulesPerRow, opts.Center)
}

// PageCenterable reports whether every non-blank row of a page may be
// centered. Pages are centered as a whole or not at all.
func PageCenterable(rows []Row) bool {
	for _, r := range rows {
		if !r.Blank() && !r.Centerable() {
			return false
		}
	}
	return true
}

// Paginate groups rows into pages of rowsPerPage rows, padding the last page
// with blank rows, and renders each page as one string of exactly
// rowsPerPage*modulesPerRow characters. No rows yield no pages.
//
// When center is set, pages that pass PageCenterable have their rows centered,
// with the odd cell of padding going to the right. Other pages are left
// justified.
func Paginate(rows []Row, rowsPerPage, modulesPerRow int, center bool) []string {
	checkRowLength(rowsPerPage)
	checkRowLength(modulesPerRow)
	checkRows(rows, modulesPerRow)

	pages := make([]string, 0, (len(rows)+rowsPerPage-1)/rowsPerPage)
	for start := 0; start < len(rows); start += rowsPerPage {
		page := make([]Row, 0, rowsPerPage)
		page = append(page, rows[start:min(start+rowsPerPage, len(rows))]...)
		for len(page) < rowsPerPage {
			page = append(page, Row{})
		}

		centered := center && PageCenterable(page)
		var b strings.Builder
		b.Grow(rowsPerPage * modulesPerRow)
		for _, r := range page {
			switch {
			case r.Blank():
				b.WriteString(strings.Repeat(" ", modulesPerRow))
			case centered:
				b.WriteString(centerRow(r.Content, modulesPerRow))
			default:
				b.WriteString(padRight(r.Content, modulesPerRow))
			}
		}
		pages = append(pages, b.String())
	}
	return pages
}

// Blank returns a frame of width spaces.
func Blank(width int) string { return strings.Repeat(" ", max(width, 0)) }

// Fit left-justifies s in width cells, cutting it when it is wider.
func Fit(s string, width int) string {
	s, _ = cut(s, max(width, 0))
	return padRight(s, max(width, 0))
}

func centerRow(content string, width int) string {
	content = strings.Trim(content, " ")
	pad := width - runeLen(content)
	left := pad / 2
	return strings.Repeat(" ", left) + content + strings.Repeat(" ", pad-left)
}

func padRight(content string, width int) string {
	return content + strings.Repeat(" ", width-runeLen(content))
}

// FrameRows cuts a rendered frame back into rows of width characters.
func FrameRows(frame string, width int) []string {
	if width < 1 {
		return []string{frame}
	}
	runes := []rune(frame)
	var rows []string
	for start := 0; start < len(runes); start += width {
		rows = append(rows, string(runes[start:min(start+width, len(runes))]))
	}
	return rows
}
