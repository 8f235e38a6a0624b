package components

import "gonum.org/v1/gonum/spatial/r2"

// Position represents a bubble's own tracked position.
type Position struct {
	X, Y float64
}

// Vec returns the position as a vector.
func (p Position) Vec() r2.Vec {
	return r2.Vec{X: p.X, Y: p.Y}
}

// Set assigns from a vector.
func (p *Position) Set(v r2.Vec) {
	p.X, p.Y = v.X, v.Y
}

// Motion holds the movement feed state.
type Motion struct {
	Velocity r2.Vec
	Heading  r2.Vec // Desired direction, magnitude 0..1
	Slowed   bool   // Player currently held by a negative bubble
}
