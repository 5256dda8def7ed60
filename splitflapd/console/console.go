// Package console previews split-flap frames in a terminal.
package console

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"github.com/harveysanders/splitflap/text"
)

// unprintable stands in for characters a flap module cannot show in one cell.
const unprintable = '?'

// Preview is a display.Sink drawing each frame as a grid of modules on a
// tcell screen.
type Preview struct {
	screen        tcell.Screen
	modulesPerRow int
	rows          int

	mu     sync.Mutex
	frames int
	flap   tcell.Style
	frame  tcell.Style
}

// NewPreview returns a preview of a modulesPerRow x rows display. The screen
// must already be initialized.
func NewPreview(screen tcell.Screen, modulesPerRow, rows int) *Preview {
	return &Preview{
		screen:        screen,
		modulesPerRow: modulesPerRow,
		rows:          rows,
		flap:          tcell.StyleDefault.Foreground(tcell.ColorYellow).Background(tcell.ColorBlack).Bold(true),
		frame:         tcell.StyleDefault.Foreground(tcell.PaletteColor(8)),
	}
}

func (p *Preview) Publish(_ context.Context, topic string, payload []byte, retain bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames++

	s := p.screen
	s.Clear()
	inner := 2*p.modulesPerRow - 1
	border := "+" + strings.Repeat("-", inner) + "+"
	p.drawString(0, 0, border, p.frame)
	for r, row := range text.FrameRows(string(payload), p.modulesPerRow) {
		if r >= p.rows {
			break
		}
		y := 1 + r
		s.SetContent(0, y, '|', nil, p.frame)
		col := 0
		for _, ch := range row {
			if runewidth.RuneWidth(ch) != 1 {
				ch = unprintable
			}
			s.SetContent(1+2*col, y, ch, nil, p.flap)
			col++
		}
		s.SetContent(1+inner, y, '|', nil, p.frame)
	}
	p.drawString(0, 1+p.rows, border, p.frame)

	status := fmt.Sprintf("%s  frame %d", topic, p.frames)
	if !retain {
		status += "  (transient)"
	}
	p.drawString(0, 2+p.rows, status, tcell.StyleDefault)
	s.Show()
	return nil
}

func (p *Preview) drawString(x, y int, str string, style tcell.Style) {
	for _, ch := range str {
		p.screen.SetContent(x, y, ch, nil, style)
		x += runewidth.RuneWidth(ch)
	}
}

// Printer is a display.Sink writing every frame as lines of text, for
// output that is not a terminal.
type Printer struct {
	W             io.Writer
	ModulesPerRow int

	mu sync.Mutex
}

func (p *Printer) Publish(_ context.Context, topic string, payload []byte, _ bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var b strings.Builder
	fmt.Fprintf(&b, "-- %s\n", topic)
	for _, row := range text.FrameRows(string(payload), p.ModulesPerRow) {
		fmt.Fprintf(&b, "|%s|\n", row)
	}
	_, err := io.WriteString(p.W, b.String())
	return err
}
