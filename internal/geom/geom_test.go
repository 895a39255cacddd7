package geom

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsColliding(t *testing.T) {
	tests := []struct {
		name string
		a, b Point
		want bool
	}{
		{"overlapping on x", Point{0, 0}, Point{30, 0}, true},
		{"far apart on x", Point{0, 0}, Point{100, 0}, false},
		{"same position", Point{50, 50}, Point{50, 50}, true},
		{"touching edge", Point{0, 0}, Point{60, 0}, false},
		{"overlap on x only", Point{0, 0}, Point{10, 80}, false},
		{"negative coordinates", Point{-20, -20}, Point{10, 10}, true},
		{"b before a", Point{100, 100}, Point{70, 130}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsColliding(tt.a, tt.b, DefaultBoxSize))
			assert.Equal(t, tt.want, IsColliding(tt.b, tt.a, DefaultBoxSize), "must be symmetric")
		})
	}
}

func TestHeading(t *testing.T) {
	d := Heading(0, 10)
	assert.InDelta(t, 10, d.X, 1e-9)
	assert.InDelta(t, 0, d.Y, 1e-9)

	d = Heading(90, 10)
	assert.InDelta(t, 0, d.X, 1e-9)
	assert.InDelta(t, 10, d.Y, 1e-9)

	d = Heading(540, 2)
	assert.InDelta(t, -2, d.X, 1e-9)
}

func TestPointAdd(t *testing.T) {
	assert.Equal(t, Point{3, -1}, Point{1, 1}.Add(Point{2, -2}))
}
