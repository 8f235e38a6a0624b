package game

import (
	"log/slog"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/bubblecomplex/components"
	"github.com/pthm-cable/bubblecomplex/systems"
	"github.com/pthm-cable/bubblecomplex/telemetry"
)

// handleEvent feeds dispatched bubble events into telemetry and the
// slowed-player tracking.
func (g *Game) handleEvent(ev systems.Event) {
	g.collector.RecordEvent(ev)
	g.metrics.ObserveEvent(ev)
	if g.outputManager != nil && telemetry.IsDiscrete(ev.Type) {
		g.eventBuf = append(g.eventBuf, telemetry.NewEventRecord(ev))
	}

	switch ev.Type {
	case systems.EventAbsorbedByOther:
		if !g.bubbles.Alive(ev.Subject) || !g.bubbles.Alive(ev.Other) {
			return
		}
		if g.bubbles.Bubble(ev.Subject).Category != components.CategoryPlayer {
			return
		}
		held := g.bubbles.Bubble(ev.Other).Category == components.CategoryNegative
		g.setSlowed(ev.Subject, held)

	case systems.EventLeftParent, systems.EventBecameIndividual:
		if g.slowed[ev.Subject] {
			g.setSlowed(ev.Subject, false)
		}

	case systems.EventDestroyed:
		delete(g.slowed, ev.Subject)
	}
}

func (g *Game) setSlowed(e ecs.Entity, on bool) {
	if !g.bubbles.Alive(e) {
		return
	}
	if on {
		g.slowed[e] = true
	} else {
		delete(g.slowed, e)
	}
	g.movement.SetSlowed(e, on)
	slog.Debug("player slowed", "tick", g.tick, "bubble", g.bubbles.ID(e), "slowed", on)
}

// recordTick forwards per-tick counters.
func (g *Game) recordTick() {
	g.metrics.ObserveTick()

	healed := g.bubbles.OrphansHealed()
	if d := healed - g.orphansSeen; d > 0 {
		g.collector.RecordOrphansHealed(d)
	}
	g.orphansSeen = healed

	if len(g.eventBuf) > 0 {
		if err := g.outputManager.WriteEvents(g.eventBuf); err != nil {
			slog.Error("failed to write events", "error", err)
		}
		g.eventBuf = g.eventBuf[:0]
	}
}

// flushTelemetry checks if the stats window should be flushed.
func (g *Game) flushTelemetry() {
	if !g.collector.ShouldFlush(g.tick) {
		return
	}

	pop := g.samplePopulation()
	g.metrics.ObservePopulation(pop)

	stats := g.collector.Flush(g.tick, pop)
	perfStats := g.perfCollector.Stats()

	if g.statsCallback != nil {
		g.statsCallback(stats)
	}

	if g.logStats {
		stats.LogStats()
		perfStats.LogStats()
	}

	if g.outputManager != nil {
		if err := g.outputManager.WriteTelemetry(stats); err != nil {
			slog.Error("failed to write telemetry", "error", err)
		}
		if err := g.outputManager.WritePerf(perfStats, stats.WindowEndTick); err != nil {
			slog.Error("failed to write perf", "error", err)
		}
	}
}

// samplePopulation counts bubbles by state and measures every group.
func (g *Game) samplePopulation() telemetry.Population {
	var pop telemetry.Population
	for _, e := range g.bubbles.Entities() {
		switch g.bubbles.State(e) {
		case components.StateIndividual:
			pop.Individuals++
		case components.StateChild:
			pop.Children++
		case components.StateParent:
			pop.Parents++
			pop.GroupSizes = append(pop.GroupSizes, float64(1+len(g.bubbles.Children(e))))
			pop.GroupRadii = append(pop.GroupRadii, g.bubbles.RealRadius(e))
		}
	}
	return pop
}
