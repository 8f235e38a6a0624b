package telemetry

import "github.com/pthm-cable/bubblecomplex/systems"

// Collector accumulates events within time windows and produces WindowStats.
type Collector struct {
	windowDurationSec   float64
	windowDurationTicks int32
	dt                  float64

	// Current window tracking
	windowStartTick int32

	// Event counters for current window
	absorptions   int
	separations   int
	bumps         int
	hardenToggles int
	orphansHealed int
	destroyed     int
}

// Population is a snapshot of the bubble population at window end.
type Population struct {
	Individuals int
	Parents     int
	Children    int

	GroupSizes []float64 // Members per group (parent + children)
	GroupRadii []float64 // Real radius per group
}

// NewCollector creates a new stats collector.
// windowDurationSec: how long each stats window lasts in simulation seconds
// dt: seconds per tick (used for tick-to-time conversion)
func NewCollector(windowDurationSec float64, dt float64) *Collector {
	ticksPerWindow := int32(windowDurationSec / dt)
	if ticksPerWindow < 1 {
		ticksPerWindow = 1
	}

	return &Collector{
		windowDurationSec:   windowDurationSec,
		windowDurationTicks: ticksPerWindow,
		dt:                  dt,
	}
}

// RecordEvent counts a dispatched bubble event.
func (c *Collector) RecordEvent(ev systems.Event) {
	switch ev.Type {
	case systems.EventAbsorbedOther:
		c.absorptions++
	case systems.EventLeftParent:
		c.separations++
	case systems.EventBumpedIntoHardened:
		c.bumps++
	case systems.EventHardenedChanged:
		c.hardenToggles++
	case systems.EventDestroyed:
		c.destroyed++
	}
}

// RecordOrphansHealed adds n healed orphans to the current window.
func (c *Collector) RecordOrphansHealed(n int) {
	c.orphansHealed += n
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int32) bool {
	return currentTick-c.windowStartTick >= c.windowDurationTicks
}

// Flush produces a WindowStats and resets counters for the next window.
func (c *Collector) Flush(currentTick int32, pop Population) WindowStats {
	sizeMean, sizeStd, sizeP50, sizeP90 := ComputeGroupStats(pop.GroupSizes)

	var largest float64
	for _, r := range pop.GroupRadii {
		if r > largest {
			largest = r
		}
	}

	var absorptionRate float64
	if elapsed := float64(currentTick-c.windowStartTick) * c.dt; elapsed > 0 {
		absorptionRate = float64(c.absorptions) / elapsed
	}

	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		SimTimeSec:      float64(currentTick) * c.dt,

		Bubbles:     pop.Individuals + pop.Parents + pop.Children,
		Individuals: pop.Individuals,
		Parents:     pop.Parents,
		Children:    pop.Children,

		GroupSizeMean: sizeMean,
		GroupSizeStd:  sizeStd,
		GroupSizeP50:  sizeP50,
		GroupSizeP90:  sizeP90,
		LargestRadius: largest,

		Absorptions:    c.absorptions,
		Separations:    c.separations,
		Bumps:          c.bumps,
		HardenToggles:  c.hardenToggles,
		OrphansHealed:  c.orphansHealed,
		Destroyed:      c.destroyed,
		AbsorptionRate: absorptionRate,
	}

	// Reset for next window
	c.windowStartTick = currentTick
	c.absorptions = 0
	c.separations = 0
	c.bumps = 0
	c.hardenToggles = 0
	c.orphansHealed = 0
	c.destroyed = 0

	return stats
}

// WindowDurationTicks returns the number of ticks per window.
func (c *Collector) WindowDurationTicks() int32 {
	return c.windowDurationTicks
}
