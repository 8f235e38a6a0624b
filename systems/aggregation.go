package systems

import (
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/bubblecomplex/components"
)

// Contributor is one member's share of an aggregate.
// Weight applies to children only; the base always counts its full radius.
type Contributor struct {
	Radius   float64
	Weight   float64
	Position r2.Vec
}

// Aggregate computes a group's radius and radius-weighted centroid.
// radius = base.Radius + sum(child.Radius * child.Weight).
// A zero total radius falls back to the base position.
func Aggregate(base Contributor, children []Contributor) (float64, r2.Vec) {
	radius := base.Radius
	for _, c := range children {
		radius += c.Radius * c.Weight
	}

	if radius == 0 {
		return 0, base.Position
	}

	pos := r2.Scale(base.Radius/radius, base.Position)
	for _, c := range children {
		pos = r2.Add(pos, r2.Scale(c.Radius*c.Weight/radius, c.Position))
	}
	return radius, pos
}

// contributorOf returns a bubble's share as a child of someone else.
func contributorOf(b *components.Bubble, pos *components.Position) Contributor {
	return Contributor{Radius: b.IndividualRadius, Weight: b.ChildWeightRatio, Position: pos.Vec()}
}
