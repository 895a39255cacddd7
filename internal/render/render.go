// Package render draws the stage to an image: each sprite as its bounding
// box with a heading marker, speech and thought bubbles above it, and
// collision flags in red. Output is PNG.
package render

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"sort"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"

	"github.com/thruflo/stagehand/internal/geom"
	"github.com/thruflo/stagehand/internal/stream"
)

// Default canvas parameters.
const (
	DefaultWidth    = 480
	DefaultHeight   = 360
	DefaultGridSize = 40
	MaxScale        = 4.0
)

// Options configures a render.
type Options struct {
	Width, Height int
	BoxSize       float64
	GridSize      int     // 0 disables the grid
	Scale         float64 // output size multiplier; 0 means 1
}

// DefaultOptions returns the editor's stage size.
func DefaultOptions() Options {
	return Options{
		Width:    DefaultWidth,
		Height:   DefaultHeight,
		BoxSize:  geom.DefaultBoxSize,
		GridSize: DefaultGridSize,
		Scale:    1,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Width <= 0 {
		o.Width = def.Width
	}
	if o.Height <= 0 {
		o.Height = def.Height
	}
	if o.BoxSize <= 0 {
		o.BoxSize = def.BoxSize
	}
	if o.GridSize < 0 {
		o.GridSize = 0
	}
	if o.Scale <= 0 || math.IsNaN(o.Scale) {
		o.Scale = 1
	}
	o.Scale = min(o.Scale, MaxScale)
	return o
}

var (
	colorBackground = color.RGBA{0xff, 0xff, 0xff, 0xff}
	colorGrid       = color.RGBA{0xe6, 0xe6, 0xe6, 0xff}
	colorSprite     = color.RGBA{0xff, 0xab, 0x19, 0xff}
	colorHero       = color.RGBA{0x59, 0xc0, 0x59, 0xff}
	colorActive     = color.RGBA{0x4c, 0x97, 0xff, 0xff}
	colorColliding  = color.RGBA{0xe6, 0x3b, 0x3b, 0xff}
	colorSelected   = color.RGBA{0x1f, 0x1f, 0x1f, 0xff}
	colorText       = color.RGBA{0x1f, 0x1f, 0x1f, 0xff}
	colorBubble     = color.RGBA{0xff, 0xff, 0xff, 0xf0}
)

// Fill returns the body colour of a sprite. Collision wins over hero,
// hero over running.
func Fill(s stream.SpriteEvent) color.RGBA {
	switch {
	case s.Colliding:
		return colorColliding
	case s.Hero:
		return colorHero
	case s.Active:
		return colorActive
	default:
		return colorSprite
	}
}

// Render draws sprites in id order so that later sprites overlap earlier
// ones. Positions are the top-left corner of each bounding box.
func Render(sprites []stream.SpriteEvent, opts Options) image.Image {
	opts = opts.withDefaults()

	dc := gg.NewContext(opts.Width, opts.Height)
	dc.SetColor(colorBackground)
	dc.Clear()
	drawGrid(dc, opts)

	ordered := append([]stream.SpriteEvent(nil), sprites...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	for _, s := range ordered {
		if s.Removed {
			continue
		}
		drawSprite(dc, s, opts.BoxSize)
	}
	// Bubbles go on top of every body.
	for _, s := range ordered {
		if s.Removed {
			continue
		}
		drawBubble(dc, s)
	}

	img := dc.Image()
	if opts.Scale != 1 {
		w := int(math.Round(float64(opts.Width) * opts.Scale))
		img = imaging.Resize(img, max(w, 1), 0, imaging.Lanczos)
	}
	return img
}

// WritePNG renders sprites and encodes the result as PNG.
func WritePNG(w io.Writer, sprites []stream.SpriteEvent, opts Options) error {
	if err := imaging.Encode(w, Render(sprites, opts), imaging.PNG); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return nil
}

// SavePNG renders sprites to a PNG file.
func SavePNG(path string, sprites []stream.SpriteEvent, opts Options) error {
	if err := imaging.Save(Render(sprites, opts), path); err != nil {
		return fmt.Errorf("failed to save png: %w", err)
	}
	return nil
}

func drawGrid(dc *gg.Context, opts Options) {
	if opts.GridSize == 0 {
		return
	}
	dc.SetColor(colorGrid)
	dc.SetLineWidth(1)
	for x := 0; x <= opts.Width; x += opts.GridSize {
		dc.DrawLine(float64(x), 0, float64(x), float64(opts.Height))
		dc.Stroke()
	}
	for y := 0; y <= opts.Height; y += opts.GridSize {
		dc.DrawLine(0, float64(y), float64(opts.Width), float64(y))
		dc.Stroke()
	}
}

func drawSprite(dc *gg.Context, s stream.SpriteEvent, box float64) {
	dc.SetColor(Fill(s))
	dc.DrawRoundedRectangle(s.X, s.Y, box, box, box/8)
	dc.Fill()

	if s.Selected {
		dc.SetColor(colorSelected)
		dc.SetLineWidth(3)
		dc.DrawRoundedRectangle(s.X, s.Y, box, box, box/8)
		dc.Stroke()
	}

	// Heading marker from the centre towards the facing direction.
	cx, cy := s.X+box/2, s.Y+box/2
	tip := geom.Point{X: cx, Y: cy}.Add(geom.Heading(s.Heading, box/2))
	dc.SetColor(colorText)
	dc.SetLineWidth(2)
	dc.DrawLine(cx, cy, tip.X, tip.Y)
	dc.Stroke()

	dc.DrawStringAnchored(fmt.Sprintf("#%d", s.ID), cx, s.Y+box+8, 0.5, 0.5)
	if s.Animation != "" {
		dc.DrawStringAnchored(s.Animation, cx, s.Y+box+22, 0.5, 0.5)
	}
}

func drawBubble(dc *gg.Context, s stream.SpriteEvent) {
	text, thought := s.SayText, false
	if text == "" {
		text, thought = s.ThinkText, true
	}
	if text == "" {
		return
	}

	tw, th := dc.MeasureString(text)
	const pad = 6.0
	w, h := tw+2*pad, th+2*pad
	x, y := s.X, s.Y-h-10

	dc.SetColor(colorBubble)
	dc.DrawRoundedRectangle(x, y, w, h, h/2)
	dc.FillPreserve()
	dc.SetColor(colorText)
	dc.SetLineWidth(1)
	if thought {
		dc.SetDash(3, 3)
	}
	dc.Stroke()
	dc.SetDash()

	if thought {
		dc.DrawCircle(x+10, y+h+4, 3)
		dc.Stroke()
	} else {
		dc.MoveTo(x+10, y+h)
		dc.LineTo(x+14, y+h+8)
		dc.LineTo(x+20, y+h)
		dc.Stroke()
	}

	dc.DrawStringAnchored(text, x+w/2, y+h/2, 0.5, 0.35)
}
