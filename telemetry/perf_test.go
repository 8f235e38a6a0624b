package telemetry

import (
	"testing"
	"time"
)

func runTicks(pc *PerfCollector, n int, drift, bubbles time.Duration) {
	for i := 0; i < n; i++ {
		pc.StartTick()
		pc.StartPhase(PhaseDrift)
		time.Sleep(drift)
		pc.StartPhase(PhaseBubbles)
		time.Sleep(bubbles)
		pc.EndTick()
	}
}

func TestPerfCollector_BasicTiming(t *testing.T) {
	pc := NewPerfCollector(10)
	runTicks(pc, 5, 100*time.Microsecond, 200*time.Microsecond)

	stats := pc.Stats()

	if stats.AvgTick <= 0 {
		t.Error("expected positive average tick duration")
	}
	if stats.PhaseAvg[PhaseDrift] <= 0 || stats.PhaseAvg[PhaseBubbles] <= 0 {
		t.Errorf("expected drift and bubbles phases to be tracked: %v", stats.PhaseAvg)
	}
	if stats.PhaseAvg[PhaseDispatch] != 0 {
		t.Errorf("dispatch never ran but has %v", stats.PhaseAvg[PhaseDispatch])
	}
	if stats.MinTick > stats.P90Tick || stats.P90Tick > stats.MaxTick {
		t.Errorf("expected min <= p90 <= max, got %v %v %v", stats.MinTick, stats.P90Tick, stats.MaxTick)
	}
}

func TestPerfCollector_RollingWindow(t *testing.T) {
	pc := NewPerfCollector(5)

	// Slow ticks fall out of the window
	runTicks(pc, 5, 0, 2*time.Millisecond)
	runTicks(pc, 5, 0, 0)

	stats := pc.Stats()
	if stats.MaxTick >= 2*time.Millisecond {
		t.Errorf("max tick %v should exclude ticks outside the window", stats.MaxTick)
	}
	if stats.TicksPerSecond <= 0 {
		t.Error("expected positive ticks per second")
	}
}

func TestPerfCollector_PhasePercentages(t *testing.T) {
	pc := NewPerfCollector(10)
	runTicks(pc, 5, 10*time.Microsecond, 500*time.Microsecond)

	stats := pc.Stats()
	if stats.PhasePct[PhaseBubbles] <= stats.PhasePct[PhaseDrift] {
		t.Errorf("expected bubbles (%v%%) > drift (%v%%)", stats.PhasePct[PhaseBubbles], stats.PhasePct[PhaseDrift])
	}
	if total := stats.PhasePct[PhaseBubbles] + stats.PhasePct[PhaseDrift]; total > 100.5 {
		t.Errorf("phase shares sum to %v%%", total)
	}
}

func TestPerfCollector_EmptyStats(t *testing.T) {
	stats := NewPerfCollector(10).Stats()
	if stats.AvgTick != 0 || stats.TicksPerSecond != 0 {
		t.Errorf("expected zero stats for empty collector, got %+v", stats)
	}
}

func TestPhase_String(t *testing.T) {
	if PhaseBubbles.String() != "bubbles" || PhaseTelemetry.String() != "telemetry" {
		t.Error("phase names out of order")
	}
	if len(Phases) != int(numPhases) {
		t.Errorf("Phases has %d entries, want %d", len(Phases), numPhases)
	}
}

func TestPerfStats_ToCSV(t *testing.T) {
	var stats PerfStats
	stats.AvgTick = 250 * time.Microsecond
	stats.TicksPerSecond = 4000
	stats.PhasePct[PhaseBubbles] = 70
	stats.PhasePct[PhaseDispatch] = 20

	row := stats.ToCSV(600)
	if row.WindowEnd != 600 || row.AvgTickUS != 250 {
		t.Errorf("unexpected row header fields: %+v", row)
	}
	if row.BubblesPct != 70 || row.DispatchPct != 20 || row.DriftPct != 0 {
		t.Errorf("phase percentages not copied: %+v", row)
	}
}
