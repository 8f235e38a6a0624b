// Package components defines ECS components for the bubble simulation.
package components

import (
	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"
)

// Category is the fixed kind of a bubble.
type Category uint8

const (
	CategoryPlayer Category = iota
	CategoryFriendly
	CategoryNegative
)

// CategoryMask selects a set of categories, one bit per Category.
type CategoryMask uint8

// MaskAll matches every category.
const MaskAll CategoryMask = 1<<CategoryPlayer | 1<<CategoryFriendly | 1<<CategoryNegative

// Mask returns the mask containing only c.
func (c Category) Mask() CategoryMask {
	return 1 << c
}

// Has reports whether c is in the mask.
func (m CategoryMask) Has(c Category) bool {
	return m&c.Mask() != 0
}

// State is the hierarchy role of a bubble.
type State uint8

const (
	StateIndividual State = iota
	StateChild
	StateParent
)

// Bubble holds the fixed configuration of a bubble.
type Bubble struct {
	ID               uint32 // Never reused within a simulation
	Category         Category
	IndividualRadius float64
	ChildWeightRatio float64 // Weight of this bubble's radius when it is someone's child
}

// Real holds the derived footprint, recomputed every tick.
type Real struct {
	Radius   float64
	Position r2.Vec
}

// Hierarchy holds the one-level parent/children relationship.
// Parent is a lookup handle only; the parent owns Children.
type Hierarchy struct {
	State    State
	Parent   ecs.Entity
	Children []ecs.Entity
}

// HasChild reports whether e is a direct child.
func (h *Hierarchy) HasChild(e ecs.Entity) bool {
	for _, c := range h.Children {
		if c == e {
			return true
		}
	}
	return false
}

// RemoveChild removes e, keeping order. Returns false if e was not a child.
func (h *Hierarchy) RemoveChild(e ecs.Entity) bool {
	for i, c := range h.Children {
		if c == e {
			h.Children = append(h.Children[:i], h.Children[i+1:]...)
			return true
		}
	}
	return false
}

// Harden holds the immunity flag.
type Harden struct {
	Active bool
}

// Throttle is the per-entity phase for the Individual overlap query.
type Throttle struct {
	Phase uint8
}
