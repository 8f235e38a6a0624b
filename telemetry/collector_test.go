package telemetry

import (
	"math"
	"testing"

	"github.com/pthm-cable/bubblecomplex/systems"
)

func TestCollector_WindowTicks(t *testing.T) {
	c := NewCollector(10, 0.1)
	if c.WindowDurationTicks() != 100 {
		t.Fatalf("WindowDurationTicks = %d, want 100", c.WindowDurationTicks())
	}
	if c.ShouldFlush(99) {
		t.Error("should not flush before the window ends")
	}
	if !c.ShouldFlush(100) {
		t.Error("should flush at the window end")
	}

	if NewCollector(0, 0.1).WindowDurationTicks() != 1 {
		t.Error("window should be at least one tick")
	}
}

func TestCollector_FlushCountsAndResets(t *testing.T) {
	c := NewCollector(1, 0.5)

	for _, et := range []systems.EventType{
		systems.EventAbsorbedOther,
		systems.EventAbsorbedOther,
		systems.EventAbsorbedByOther, // counted once per absorption via AbsorbedOther
		systems.EventLeftParent,
		systems.EventBumpedIntoHardened,
		systems.EventBumpedByBubble,
		systems.EventHardenedChanged,
		systems.EventDestroyed,
		systems.EventRadiusChanged,
	} {
		c.RecordEvent(systems.Event{Type: et})
	}
	c.RecordOrphansHealed(3)

	stats := c.Flush(4, Population{
		Individuals: 5,
		Parents:     2,
		Children:    3,
		GroupSizes:  []float64{2, 3},
		GroupRadii:  []float64{9.5, 12},
	})

	if stats.Bubbles != 10 || stats.Individuals != 5 || stats.Parents != 2 || stats.Children != 3 {
		t.Errorf("population = %+v", stats)
	}
	if stats.Absorptions != 2 || stats.Separations != 1 || stats.Bumps != 1 {
		t.Errorf("absorptions/separations/bumps = %d/%d/%d, want 2/1/1",
			stats.Absorptions, stats.Separations, stats.Bumps)
	}
	if stats.HardenToggles != 1 || stats.Destroyed != 1 || stats.OrphansHealed != 3 {
		t.Errorf("toggles/destroyed/orphans = %d/%d/%d, want 1/1/3",
			stats.HardenToggles, stats.Destroyed, stats.OrphansHealed)
	}
	if stats.LargestRadius != 12 {
		t.Errorf("LargestRadius = %v, want 12", stats.LargestRadius)
	}
	if math.Abs(stats.GroupSizeMean-2.5) > 0.001 {
		t.Errorf("GroupSizeMean = %v, want 2.5", stats.GroupSizeMean)
	}
	// 2 absorptions over 4 ticks of 0.5s
	if math.Abs(stats.AbsorptionRate-1) > 0.001 {
		t.Errorf("AbsorptionRate = %v, want 1", stats.AbsorptionRate)
	}
	if math.Abs(stats.SimTimeSec-2) > 0.001 {
		t.Errorf("SimTimeSec = %v, want 2", stats.SimTimeSec)
	}

	next := c.Flush(6, Population{})
	if next.WindowStartTick != 4 {
		t.Errorf("next window start = %d, want 4", next.WindowStartTick)
	}
	if next.Absorptions != 0 || next.OrphansHealed != 0 || next.LargestRadius != 0 {
		t.Errorf("counters not reset: %+v", next)
	}
}

func TestIsDiscrete(t *testing.T) {
	if IsDiscrete(systems.EventRadiusChanged) || IsDiscrete(systems.EventPositionChanged) {
		t.Error("value updates should not be discrete")
	}
	if !IsDiscrete(systems.EventAbsorbedByOther) || !IsDiscrete(systems.EventDestroyed) {
		t.Error("transitions should be discrete")
	}
}
