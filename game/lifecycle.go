package game

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/bubblecomplex/components"
	"github.com/pthm-cable/bubblecomplex/config"
	"github.com/pthm-cable/bubblecomplex/systems"
)

// Spawn and control errors.
var (
	ErrInvalidRadius   = errors.New("radius must be positive and finite")
	ErrInvalidWeight   = errors.New("child weight must be non-negative and finite")
	ErrInvalidCategory = errors.New("unknown category")
	ErrUnknownEntity   = errors.New("unknown bubble")
)

// DefaultChildWeight as a BubbleSpec weight selects absorption.default_child_weight.
const DefaultChildWeight = -1.0

// BubbleSpec describes a bubble to spawn.
type BubbleSpec struct {
	Category    components.Category
	Radius      float64
	ChildWeight float64
	Position    r2.Vec
}

// spawnInitialPopulation creates the starting bubbles from config.
func (g *Game) spawnInitialPopulation() {
	pop := g.cfg.Population
	groups := []struct {
		category components.Category
		spawn    config.SpawnConfig
	}{
		{components.CategoryPlayer, pop.Player},
		{components.CategoryFriendly, pop.Friendly},
		{components.CategoryNegative, pop.Negative},
	}

	for _, grp := range groups {
		weight := grp.spawn.ChildWeight
		if weight == 0 {
			weight = DefaultChildWeight
		}
		for i := 0; i < grp.spawn.Count; i++ {
			radius := grp.spawn.RadiusMin + g.rng.Float64()*(grp.spawn.RadiusMax-grp.spawn.RadiusMin)
			spec := BubbleSpec{
				Category:    grp.category,
				Radius:      radius,
				ChildWeight: weight,
				Position: r2.Vec{
					X: g.rng.Float64() * g.cfg.World.Width,
					Y: g.rng.Float64() * g.cfg.World.Height,
				},
			}
			if _, err := g.Spawn(spec); err != nil {
				slog.Error("failed to spawn initial bubble", "category", grp.category.String(), "error", err)
			}
		}
	}

	slog.Info("spawned initial population",
		"player", pop.Player.Count,
		"friendly", pop.Friendly.Count,
		"negative", pop.Negative.Count,
	)
}

// Spawn validates the requested bubble and creates it as an Individual.
func (g *Game) Spawn(spec BubbleSpec) (ecs.Entity, error) {
	if !spec.Category.Valid() {
		return ecs.Entity{}, fmt.Errorf("spawning bubble: %w: %d", ErrInvalidCategory, spec.Category)
	}
	if !(spec.Radius > 0) || math.IsInf(spec.Radius, 0) {
		return ecs.Entity{}, fmt.Errorf("spawning bubble: %w: %v", ErrInvalidRadius, spec.Radius)
	}

	weight := spec.ChildWeight
	if weight == DefaultChildWeight {
		weight = g.cfg.Absorption.DefaultChildWeight
	}
	if !(weight >= 0) || math.IsInf(weight, 0) {
		return ecs.Entity{}, fmt.Errorf("spawning bubble: %w: %v", ErrInvalidWeight, spec.ChildWeight)
	}

	e := g.bubbles.Spawn(systems.BubbleSpec{
		Category:    spec.Category,
		Radius:      spec.Radius,
		ChildWeight: weight,
		Position:    spec.Position,
	})

	if spec.Category == components.CategoryPlayer {
		g.harden[e] = &systems.HardenController{MinTicks: g.cfg.Derived.MinHardenTicks}
	}
	return e, nil
}

// Destroy detaches e from its hierarchy and removes it.
func (g *Game) Destroy(e ecs.Entity) error {
	if !g.bubbles.Destroy(e) {
		return fmt.Errorf("destroying bubble: %w", ErrUnknownEntity)
	}
	delete(g.harden, e)
	delete(g.pressed, e)
	delete(g.steering, e)
	delete(g.slowed, e)
	g.bus.Dispatch()
	return nil
}
