package systems

import (
	"math"

	"github.com/mlange-42/ark/ecs"
	"github.com/ojrac/opensimplex-go"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/bubblecomplex/components"
	"github.com/pthm-cable/bubblecomplex/config"
)

// DriftField steers bubbles along an animated noise field.
// It stands in for the external movement logic in headless runs.
type DriftField struct {
	filter ecs.Filter2[components.Position, components.Motion]
	noise  opensimplex.Noise
	cfg    config.DriftConfig
	time   float64
}

// NewDriftField creates a drift field with the given seed.
func NewDriftField(w *ecs.World, cfg config.DriftConfig, seed int64) *DriftField {
	return &DriftField{
		filter: *ecs.NewFilter2[components.Position, components.Motion](w),
		noise:  opensimplex.New(seed),
		cfg:    cfg,
	}
}

// Sample returns the heading at p for the current field time.
func (d *DriftField) Sample(p r2.Vec) r2.Vec {
	n := d.noise.Eval3(p.X*d.cfg.Scale, p.Y*d.cfg.Scale, d.time*d.cfg.TimeSpeed)
	angle := n * 2 * math.Pi
	return r2.Vec{X: math.Cos(angle) * d.cfg.Strength, Y: math.Sin(angle) * d.cfg.Strength}
}

// Update advances field time and writes a heading for every bubble.
func (d *DriftField) Update(dt float64) {
	d.time += dt

	query := d.filter.Query()
	for query.Next() {
		pos, m := query.Get()
		m.Heading = d.Sample(pos.Vec())
	}
}
