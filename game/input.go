package game

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"
)

// RequestHarden records whether the harden button is held for a player bubble.
// The request is applied on the next Step through the bubble's controller.
func (g *Game) RequestHarden(e ecs.Entity, pressed bool) error {
	if _, ok := g.harden[e]; !ok || !g.bubbles.Alive(e) {
		return fmt.Errorf("requesting harden: %w", ErrUnknownEntity)
	}
	g.pressed[e] = pressed
	return nil
}

// SetHardened sets e's harden flag directly. A player's controller adopts
// the new flag, so a later release still needs the minimum harden time.
// Resulting events are dispatched before it returns.
func (g *Game) SetHardened(e ecs.Entity, on bool) error {
	if !g.bubbles.Alive(e) {
		return fmt.Errorf("setting harden: %w", ErrUnknownEntity)
	}
	g.bubbles.SetHardened(e, on)
	if ctrl, ok := g.harden[e]; ok {
		ctrl.Force(g.bubbles.Hardened(e))
	}
	g.bus.Dispatch()
	return nil
}

// Steer overrides the drift heading for e until ReleaseSteering is called.
func (g *Game) Steer(e ecs.Entity, heading r2.Vec) error {
	if !g.bubbles.Alive(e) {
		return fmt.Errorf("steering: %w", ErrUnknownEntity)
	}
	g.steering[e] = heading
	return nil
}

// ReleaseSteering hands e back to the drift field.
func (g *Game) ReleaseSteering(e ecs.Entity) {
	delete(g.steering, e)
}

// SetIndividualPosition teleports e's own tracked position.
func (g *Game) SetIndividualPosition(e ecs.Entity, p r2.Vec) error {
	if !g.bubbles.Alive(e) {
		return fmt.Errorf("setting position: %w", ErrUnknownEntity)
	}
	g.bubbles.SetIndividualPosition(e, p)
	return nil
}

// updateHarden advances every harden controller by one tick, in ID order.
func (g *Game) updateHarden() {
	players := make([]ecs.Entity, 0, len(g.harden))
	for e := range g.harden {
		if !g.bubbles.Alive(e) {
			delete(g.harden, e)
			continue
		}
		players = append(players, e)
	}
	slices.SortFunc(players, func(a, b ecs.Entity) int {
		return cmp.Compare(g.bubbles.ID(a), g.bubbles.ID(b))
	})

	for _, e := range players {
		active, changed := g.harden[e].Update(g.pressed[e], g.bubbles.State(e))
		if changed {
			g.bubbles.SetHardened(e, active)
		}
	}
}
