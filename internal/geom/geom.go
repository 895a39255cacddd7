// Package geom holds the stage's 2D primitives and the bounding-box
// collision test used by the collision policies.
package geom

import "math"

// DefaultBoxSize is the side of a sprite's square bounding box in stage units.
const DefaultBoxSize = 60.0

// Point is a real-valued stage position. Y grows downward.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Add returns p translated by d.
func (p Point) Add(d Point) Point {
	return Point{X: p.X + d.X, Y: p.Y + d.Y}
}

// Heading returns the displacement of length dist along headingDeg, where 0
// points along +x and positive angles rotate clockwise on screen.
func Heading(headingDeg, dist float64) Point {
	rad := headingDeg * math.Pi / 180
	return Point{X: dist * math.Cos(rad), Y: dist * math.Sin(rad)}
}

// IsColliding reports whether the size x size boxes anchored at a and b
// overlap. Touching edges do not count.
func IsColliding(a, b Point, size float64) bool {
	return a.X < b.X+size &&
		a.X+size > b.X &&
		a.Y < b.Y+size &&
		a.Y+size > b.Y
}
