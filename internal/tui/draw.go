package tui

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gdamore/tcell/v2"

	"github.com/thruflo/stagehand/internal/render"
	"github.com/thruflo/stagehand/internal/stream"
)

const keyHelp = "r run  x reset  q quit"

var (
	styleHeader    = tcell.StyleDefault.Reverse(true)
	styleFooter    = tcell.StyleDefault.Foreground(tcell.ColorSilver)
	styleSprite    = tcell.StyleDefault.Foreground(tcell.ColorBlue)
	styleActive    = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	styleHero      = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	styleColliding = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	styleBubble    = tcell.StyleDefault.Foreground(tcell.ColorWhite)
)

// spriteStyle follows the same precedence as the PNG renderer.
func spriteStyle(s stream.SpriteEvent) tcell.Style {
	var style tcell.Style
	switch {
	case s.Colliding:
		style = styleColliding
	case s.Hero:
		style = styleHero
	case s.Active:
		style = styleActive
	default:
		style = styleSprite
	}
	if s.Selected {
		style = style.Reverse(true)
	}
	return style
}

// glyph is the last digit of the sprite id.
func glyph(id int) rune {
	if id < 0 {
		id = -id
	}
	return rune('0' + id%10)
}

// cell maps a stage position to a screen cell inside the field, which spans
// rows 1 to height-2.
func cell(x, y float64, width, height int) (int, int) {
	rows := height - 2
	if rows < 1 {
		rows = 1
	}
	col := int(x / render.DefaultWidth * float64(width))
	row := int(y / render.DefaultHeight * float64(rows))
	return clamp(col, 0, width-1), 1 + clamp(row, 0, rows-1)
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	return max(lo, min(v, hi))
}

// Draw redraws the whole screen from the board.
func (t *TUI) Draw() {
	t.mu.Lock()
	sprites := t.board.ordered()
	header := t.header(len(sprites))
	footer := t.board.message
	t.mu.Unlock()

	t.screen.Clear()
	width, height := t.screen.Size()
	if width <= 0 || height <= 0 {
		return
	}

	drawText(t.screen, 0, 0, PadOrTruncate(header, width), styleHeader)

	for _, s := range sprites {
		col, row := cell(s.X, s.Y, width, height)
		t.screen.SetContent(col, row, glyph(s.ID), nil, spriteStyle(s))

		switch {
		case s.SayText != "":
			drawText(t.screen, col+2, row, Truncate(`"`+s.SayText+`"`, width-col-2), styleBubble)
		case s.ThinkText != "":
			drawText(t.screen, col+2, row, Truncate("("+s.ThinkText+")", width-col-2), styleBubble)
		}
	}

	if height > 1 {
		drawText(t.screen, 0, height-1, Truncate(footer, width), styleFooter)
	}
	t.screen.Show()
}

func (t *TUI) header(count int) string {
	b := t.board
	line := fmt.Sprintf(" stagehand  sprites:%d  running:%d  seq:%d", count, len(b.running), b.lastSeq)
	if b.policy != "" {
		line += fmt.Sprintf("  collisions:%d (%s)", b.colliding, b.policy)
	}
	if t.controls != nil {
		line += "  |  " + keyHelp
	} else {
		line += "  |  q quit"
	}
	return line
}

func drawText(screen tcell.Screen, x, y int, s string, style tcell.Style) {
	for _, r := range s {
		screen.SetContent(x, y, r, nil, style)
		x++
	}
}

// PadOrTruncate pads or truncates a string to exactly width runes.
func PadOrTruncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	n := utf8.RuneCountInString(s)
	if n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return Truncate(s, width)
}

// Truncate truncates a string to width runes, ending in "..." when there is
// room for it.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width >= 3 {
		return string(runes[:width-3]) + "..."
	}
	return string(runes[:width])
}
