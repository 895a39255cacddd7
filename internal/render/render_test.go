package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thruflo/stagehand/internal/stream"
)

func assertColorAt(t *testing.T, img image.Image, x, y int, want color.RGBA) {
	t.Helper()
	r, g, b, a := img.At(x, y).RGBA()
	got := color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), uint8(a >> 8)}
	assert.Equal(t, want, got, "pixel (%d,%d)", x, y)
}

func TestRender_Bodies(t *testing.T) {
	t.Parallel()

	sprites := []stream.SpriteEvent{
		{ID: 2, X: 200, Y: 100, Hero: true},
		{ID: 1, X: 20, Y: 100},
		{ID: 3, X: 300, Y: 200, Colliding: true, Hero: true},
		{ID: 4, X: 20, Y: 250, Removed: true},
	}

	img := Render(sprites, Options{GridSize: 0})
	assert.Equal(t, image.Rect(0, 0, DefaultWidth, DefaultHeight), img.Bounds())

	assertColorAt(t, img, 30, 110, colorSprite)
	assertColorAt(t, img, 210, 110, colorHero)
	assertColorAt(t, img, 310, 210, colorColliding)
	assertColorAt(t, img, 30, 260, colorBackground)
	assertColorAt(t, img, 5, 5, colorBackground)
}

func TestRender_Grid(t *testing.T) {
	t.Parallel()

	img := Render(nil, Options{GridSize: 40})
	assert.NotEqual(t, colorBackground, img.At(40, 20))

	img = Render(nil, Options{GridSize: -1})
	assertColorAt(t, img, 40, 20, colorBackground)
}

func TestRender_Scale(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		scale float64
		want  image.Rectangle
	}{
		{name: "default", scale: 0, want: image.Rect(0, 0, 480, 360)},
		{name: "half", scale: 0.5, want: image.Rect(0, 0, 240, 180)},
		{name: "double", scale: 2, want: image.Rect(0, 0, 960, 720)},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			img := Render([]stream.SpriteEvent{{ID: 1, X: 100, Y: 100}}, Options{Scale: tt.scale})
			assert.Equal(t, tt.want, img.Bounds())
		})
	}
}

func TestOptions_Defaults(t *testing.T) {
	t.Parallel()

	opts := Options{Scale: 100}.withDefaults()
	assert.Equal(t, MaxScale, opts.Scale)
	assert.Equal(t, DefaultWidth, opts.Width)
	assert.Equal(t, 60.0, opts.BoxSize)
}

func TestRender_Bubbles(t *testing.T) {
	t.Parallel()

	plain := Render([]stream.SpriteEvent{{ID: 1, X: 100, Y: 150}}, Options{GridSize: 0})
	say := Render([]stream.SpriteEvent{{ID: 1, X: 100, Y: 150, SayText: "Hello!"}}, Options{GridSize: 0})
	think := Render([]stream.SpriteEvent{{ID: 1, X: 100, Y: 150, ThinkText: "Hmm..."}}, Options{GridSize: 0})

	// The bubble sits above the body.
	differs := func(a, b image.Image) bool {
		for y := 100; y < 150; y++ {
			for x := 100; x < 160; x++ {
				if a.At(x, y) != b.At(x, y) {
					return true
				}
			}
		}
		return false
	}
	assert.True(t, differs(plain, say))
	assert.True(t, differs(plain, think))
	assert.True(t, differs(say, think))
}

func TestFill(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		sprite stream.SpriteEvent
		want   color.RGBA
	}{
		{name: "idle", sprite: stream.SpriteEvent{}, want: colorSprite},
		{name: "active", sprite: stream.SpriteEvent{Active: true}, want: colorActive},
		{name: "hero", sprite: stream.SpriteEvent{Hero: true, Active: true}, want: colorHero},
		{name: "colliding", sprite: stream.SpriteEvent{Hero: true, Colliding: true}, want: colorColliding},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Fill(tt.sprite))
		})
	}
}

func TestWritePNG(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, []stream.SpriteEvent{{ID: 1, X: 10, Y: 10}}, Options{Scale: 0.5}))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 240, 180), img.Bounds())
}

func TestSavePNG(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "stage.png")
	require.NoError(t, SavePNG(path, nil, DefaultOptions()))
	assert.FileExists(t, path)
}
