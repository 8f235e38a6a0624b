package systems

import (
	"log/slog"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/bubblecomplex/components"
)

// Update advances every bubble by one tick.
//
// Bubbles are stepped in ascending ID order. The spatial index is rebuilt
// first, so merge queries see real positions as of the start of the tick.
// Each bubble picks its branch from its state when its own step begins; a
// bubble absorbed earlier in the tick therefore runs the Child branch.
func (s *BubbleSystem) Update(tick int32) {
	s.tick = tick
	s.collect()
	s.index.Rebuild(s.entries)
	clear(s.evaluated)

	for _, e := range s.order {
		s.step(e)
	}
}

func (s *BubbleSystem) step(e ecs.Entity) {
	hier := s.hierMap.Get(e)

	switch hier.State {
	case components.StateIndividual:
		s.refreshIndividual(e)

		// Overlap query on this bubble's own phase only
		throttle := s.throttleMap.Get(e)
		if throttle.Phase == 0 {
			s.attemptMerge(e)
		}
		throttle.Phase = (throttle.Phase + 1) % s.overlapInterval

	case components.StateParent:
		s.attemptMerge(e)
		s.refresh(e)

	case components.StateChild:
		if !s.validParent(e, hier) {
			s.healOrphan(e, hier)
			return
		}
		s.refreshChild(e)

		parent := s.realMap.Get(hier.Parent)
		own := s.realMap.Get(e)
		if r2.Norm(r2.Sub(own.Position, parent.Position)) > parent.Radius {
			s.Separate(e)
		}
	}
}

// attemptMerge evaluates every top-level bubble overlapping self.
// Each unordered pair is resolved at most once per tick.
func (s *BubbleSystem) attemptMerge(self ecs.Entity) {
	if s.hardenMap.Get(self).Active {
		return
	}

	own := s.realMap.Get(self)
	s.candidates = s.index.QueryOverlap(s.candidates[:0], own.Position, own.Radius, s.mask)

	selfBubble := s.bubbleMap.Get(self)
	selfHier := s.hierMap.Get(self)

	for _, cand := range s.candidates {
		if cand == self || !s.Alive(cand) || selfHier.HasChild(cand) {
			continue
		}

		candHier := s.hierMap.Get(cand)
		if candHier.State == components.StateChild {
			continue
		}

		if s.hardenMap.Get(cand).Active {
			s.bump(self, cand)
			continue
		}

		candBubble := s.bubbleMap.Get(cand)
		key := makePairKey(selfBubble.ID, candBubble.ID)
		if _, done := s.evaluated[key]; done {
			continue
		}
		s.evaluated[key] = struct{}{}

		if Resolve(selfBubble, candBubble) == SelfAbsorbs {
			s.Absorb(self, cand)
			continue
		}

		// Self lost; it is a child now and its step ends here
		s.Absorb(cand, self)
		return
	}
}

// Absorb makes candidate and all of its children direct children of self.
// It is a no-op returning false when either bubble is a Child, hardened,
// dead, or when they are the same bubble.
func (s *BubbleSystem) Absorb(self, candidate ecs.Entity) bool {
	if self == candidate || !s.Alive(self) || !s.Alive(candidate) {
		return false
	}

	selfHier := s.hierMap.Get(self)
	candHier := s.hierMap.Get(candidate)
	if selfHier.State == components.StateChild || candHier.State == components.StateChild {
		return false
	}
	if s.hardenMap.Get(self).Active || s.hardenMap.Get(candidate).Active {
		return false
	}

	// Flatten: candidate's children move up, never nest
	for _, child := range candHier.Children {
		s.attach(self, selfHier, child)
		s.emit(EventAbsorbedOther, self, child)
	}
	candHier.Children = nil

	s.attach(self, selfHier, candidate)
	s.emit(EventAbsorbedOther, self, candidate)

	selfHier.State = components.StateParent
	s.refreshParent(self)

	slog.Debug("bubble absorbed",
		"tick", s.tick,
		"parent", s.bubbleMap.Get(self).ID,
		"child", s.bubbleMap.Get(candidate).ID,
		"children", len(selfHier.Children),
	)
	return true
}

// attach turns e into a direct child of parent.
func (s *BubbleSystem) attach(parent ecs.Entity, parentHier *components.Hierarchy, e ecs.Entity) {
	hier := s.hierMap.Get(e)
	hier.State = components.StateChild
	hier.Parent = parent
	hier.Children = nil
	parentHier.Children = append(parentHier.Children, e)

	s.emit(EventAbsorbedByOther, e, parent)
	s.refreshChild(e)
}

// Separate detaches child from its parent. It is a no-op returning false
// when child is not a Child. A child with no valid parent is healed silently.
func (s *BubbleSystem) Separate(child ecs.Entity) bool {
	if !s.Alive(child) {
		return false
	}
	hier := s.hierMap.Get(child)
	if hier.State != components.StateChild {
		return false
	}
	if !s.validParent(child, hier) {
		s.healOrphan(child, hier)
		return true
	}

	parent := hier.Parent
	parentHier := s.hierMap.Get(parent)
	parentHier.RemoveChild(child)

	hier.Parent = ecs.Entity{}
	hier.State = components.StateIndividual
	s.refreshIndividual(child)

	s.emit(EventLeftParent, child, parent)
	s.emit(EventBecameIndividual, child, ecs.Entity{})
	s.emit(EventChildLeft, parent, child)

	if len(parentHier.Children) == 0 {
		parentHier.Children = nil
		parentHier.State = components.StateIndividual
		s.refreshIndividual(parent)
		s.emit(EventBecameIndividual, parent, ecs.Entity{})
	} else {
		s.refreshParent(parent)
	}

	slog.Debug("bubble separated",
		"tick", s.tick,
		"parent", s.bubbleMap.Get(parent).ID,
		"child", s.bubbleMap.Get(child).ID,
		"remaining", len(parentHier.Children),
	)
	return true
}

// validParent reports whether e's parent handle points at a live Parent listing e.
func (s *BubbleSystem) validParent(e ecs.Entity, hier *components.Hierarchy) bool {
	if !s.Alive(hier.Parent) {
		return false
	}
	parentHier := s.hierMap.Get(hier.Parent)
	return parentHier.State == components.StateParent && parentHier.HasChild(e)
}

// healOrphan forces a child without a valid parent back to Individual.
// No separation events are emitted; there is no parent to notify.
func (s *BubbleSystem) healOrphan(e ecs.Entity, hier *components.Hierarchy) {
	if s.Alive(hier.Parent) {
		s.hierMap.Get(hier.Parent).RemoveChild(e)
	}
	hier.State = components.StateIndividual
	hier.Parent = ecs.Entity{}
	hier.Children = nil
	s.refreshIndividual(e)
	s.orphansHealed++

	slog.Warn("orphaned child reset to individual", "tick", s.tick, "bubble", s.bubbleMap.Get(e).ID)
}
