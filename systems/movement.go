package systems

import (
	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/bubblecomplex/components"
	"github.com/pthm-cable/bubblecomplex/config"
)

// Bounds represents the simulation bounds.
type Bounds struct {
	Width, Height float64
}

// MovementSystem integrates individual positions from heading and velocity.
// It is the external position feed the absorption core reads from.
// Hardened bubbles ignore their heading and decelerate to a stop.
type MovementSystem struct {
	filter ecs.Filter4[components.Bubble, components.Position, components.Motion, components.Harden]
	motion *ecs.Map1[components.Motion]
	cfg    config.MovementConfig
	bounds Bounds
}

// NewMovementSystem creates a new movement system.
func NewMovementSystem(w *ecs.World, cfg config.MovementConfig, bounds Bounds) *MovementSystem {
	return &MovementSystem{
		filter: *ecs.NewFilter4[components.Bubble, components.Position, components.Motion, components.Harden](w),
		motion: ecs.NewMap1[components.Motion](w),
		cfg:    cfg,
		bounds: bounds,
	}
}

// Profile returns the movement profile a bubble uses.
func (s *MovementSystem) Profile(c components.Category, slowed bool) config.MovementProfile {
	if slowed {
		return s.cfg.Slowed
	}
	switch c {
	case components.CategoryPlayer:
		return s.cfg.Player
	case components.CategoryNegative:
		return s.cfg.Negative
	default:
		return s.cfg.Friendly
	}
}

// SetHeading sets the desired direction for e. Magnitudes above 1 are normalized.
func (s *MovementSystem) SetHeading(e ecs.Entity, heading r2.Vec) {
	s.motion.Get(e).Heading = heading
}

// SetSlowed switches e to or from the slowed profile.
func (s *MovementSystem) SetSlowed(e ecs.Entity, slowed bool) {
	s.motion.Get(e).Slowed = slowed
}

// Update runs the movement system.
func (s *MovementSystem) Update(dt float64) {
	query := s.filter.Query()
	for query.Next() {
		b, pos, m, h := query.Get()
		profile := s.Profile(b.Category, m.Slowed)

		heading := m.Heading
		if h.Active {
			heading = r2.Vec{}
		}
		m.Velocity = Move(m.Velocity, heading, profile, dt)

		next := r2.Add(pos.Vec(), r2.Scale(dt, m.Velocity))

		// Walls: clamp and kill the normal component
		if next.X < 0 {
			next.X, m.Velocity.X = 0, 0
		} else if next.X > s.bounds.Width {
			next.X, m.Velocity.X = s.bounds.Width, 0
		}
		if next.Y < 0 {
			next.Y, m.Velocity.Y = 0, 0
		} else if next.Y > s.bounds.Height {
			next.Y, m.Velocity.Y = s.bounds.Height, 0
		}

		pos.Set(next)
	}
}

// Move lerps velocity toward heading*speed by acceleration*dt (clamped to 1).
// A zero heading brings the bubble to a stop.
func Move(velocity, heading r2.Vec, profile config.MovementProfile, dt float64) r2.Vec {
	if n := r2.Norm(heading); n > 1 {
		heading = r2.Scale(1/n, heading)
	}
	target := r2.Scale(profile.Speed, heading)

	t := profile.Acceleration * dt
	if t > 1 {
		t = 1
	} else if t < 0 {
		t = 0
	}
	return r2.Add(velocity, r2.Scale(t, r2.Sub(target, velocity)))
}
