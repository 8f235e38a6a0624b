package systems

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/bubblecomplex/components"
)

// SetHardened sets e's immunity flag. HardenedChanged is emitted only on
// an actual transition; the return value reports whether one happened.
func (s *BubbleSystem) SetHardened(e ecs.Entity, on bool) bool {
	if !s.Alive(e) {
		return false
	}
	h := s.hardenMap.Get(e)
	if h.Active == on {
		return false
	}
	h.Active = on

	s.bus.Emit(Event{
		Type:      EventHardenedChanged,
		Tick:      s.tick,
		Subject:   e,
		SubjectID: s.bubbleMap.Get(e).ID,
		Hardened:  on,
	})
	return true
}

// Hardened reports e's immunity flag.
func (s *BubbleSystem) Hardened(e ecs.Entity) bool {
	if !s.Alive(e) {
		return false
	}
	return s.hardenMap.Get(e).Active
}

// bump notifies both sides of an overlap with a hardened bubble.
func (s *BubbleSystem) bump(bumper, hardened ecs.Entity) {
	s.emit(EventBumpedIntoHardened, bumper, hardened)
	s.emit(EventBumpedByBubble, hardened, bumper)
}

// HardenController maps a held button onto the harden flag.
// A press hardens unless the bubble is a Child; a release is honoured only
// once the harden has lasted MinTicks ticks.
type HardenController struct {
	MinTicks int32

	active bool
	held   int32
}

// Update advances the controller by one tick and returns the desired flag
// and whether it changed this tick.
func (c *HardenController) Update(pressed bool, state components.State) (active, changed bool) {
	switch {
	case !c.active && pressed && state != components.StateChild:
		c.active = true
		c.held = 0
		changed = true
	case c.active && !pressed && c.held >= c.MinTicks:
		c.active = false
		changed = true
	}

	if c.active {
		c.held++
	}
	return c.active, changed
}

// Force adopts a flag set outside the controller. Forcing on restarts the
// minimum-time count.
func (c *HardenController) Force(active bool) {
	if active && !c.active {
		c.held = 0
	}
	c.active = active
}

// Active reports the controller's current flag.
func (c *HardenController) Active() bool {
	return c.active
}
