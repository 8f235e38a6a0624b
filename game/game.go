// Package game drives the bubble simulation headlessly.
package game

import (
	"log/slog"
	"math/rand"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/bubblecomplex/components"
	"github.com/pthm-cable/bubblecomplex/config"
	"github.com/pthm-cable/bubblecomplex/systems"
	"github.com/pthm-cable/bubblecomplex/telemetry"
)

// Options configures a Game.
type Options struct {
	Seed           int64
	LogStats       bool
	StatsWindowSec float64 // 0 = use config
	OutputDir      string  // empty = no CSV output
	StepsPerUpdate int     // ticks per UpdateHeadless call (min 1)

	Config        *config.Config     // nil = config.Cfg()
	Metrics       *telemetry.Metrics // nil = no Prometheus export
	EmptyWorld    bool               // skip the configured initial population
	StatsCallback func(telemetry.WindowStats)
}

// Game holds the complete simulation state.
type Game struct {
	world   *ecs.World
	rng     *rand.Rand
	rngSeed int64
	cfg     *config.Config

	bus      *systems.Bus
	bubbles  *systems.BubbleSystem
	movement *systems.MovementSystem
	drift    *systems.DriftField

	// Player input
	harden   map[ecs.Entity]*systems.HardenController
	pressed  map[ecs.Entity]bool
	steering map[ecs.Entity]r2.Vec

	// Players currently held by a Negative parent
	slowed map[ecs.Entity]bool

	tick           int32
	stepsPerUpdate int

	// Telemetry
	collector     *telemetry.Collector
	perfCollector *telemetry.PerfCollector
	outputManager *telemetry.OutputManager
	metrics       *telemetry.Metrics
	logStats      bool
	statsCallback func(telemetry.WindowStats)
	eventBuf      []telemetry.EventRecord
	orphansSeen   int
}

// NewGameWithOptions creates a game with the given options.
func NewGameWithOptions(opts Options) *Game {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Cfg()
	}

	steps := opts.StepsPerUpdate
	if steps < 1 {
		steps = 1
	}

	world := ecs.NewWorld()
	bus := systems.NewBus()

	mask, err := components.ParseMask(cfg.Absorption.MergeLayers)
	if err != nil {
		// Validate already rejected unknown names
		slog.Warn("ignoring merge layers", "error", err)
		mask = components.MaskAll
	}

	g := &Game{
		world:   world,
		rng:     rand.New(rand.NewSource(opts.Seed)),
		rngSeed: opts.Seed,
		cfg:     cfg,
		bus:     bus,
		bubbles: systems.NewBubbleSystem(world, bus, systems.BubbleOptions{
			OverlapInterval: cfg.Absorption.OverlapInterval,
			MergeMask:       mask,
			Index:           systems.NewSpatialGrid(cfg.World.Width, cfg.World.Height, cfg.Physics.GridCellSize),
		}),
		movement: systems.NewMovementSystem(world, cfg.Movement, systems.Bounds{
			Width:  cfg.World.Width,
			Height: cfg.World.Height,
		}),
		drift:          systems.NewDriftField(world, cfg.Drift, opts.Seed),
		harden:         make(map[ecs.Entity]*systems.HardenController),
		pressed:        make(map[ecs.Entity]bool),
		steering:       make(map[ecs.Entity]r2.Vec),
		slowed:         make(map[ecs.Entity]bool),
		stepsPerUpdate: steps,
		metrics:        opts.Metrics,
		logStats:       opts.LogStats,
		statsCallback:  opts.StatsCallback,
	}

	statsWindow := opts.StatsWindowSec
	if statsWindow <= 0 {
		statsWindow = cfg.Telemetry.StatsWindow
	}
	g.collector = telemetry.NewCollector(statsWindow, cfg.Physics.DT)
	g.perfCollector = telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow)

	om, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		slog.Error("failed to create output manager", "error", err)
	} else if om != nil {
		g.outputManager = om
		if err := om.WriteConfig(cfg); err != nil {
			slog.Error("failed to write config", "error", err)
		}
	}

	bus.SubscribeAll(systems.ListenerFunc(g.handleEvent))

	if !opts.EmptyWorld {
		g.spawnInitialPopulation()
	}

	return g
}

// UpdateHeadless runs StepsPerUpdate simulation ticks.
func (g *Game) UpdateHeadless() {
	for i := 0; i < g.stepsPerUpdate; i++ {
		g.Step()
	}
}

// Step runs a single simulation tick.
func (g *Game) Step() {
	dt := g.cfg.Physics.DT
	g.tick++

	g.perfCollector.StartTick()

	g.perfCollector.StartPhase(telemetry.PhaseDrift)
	g.drift.Update(dt)
	for e, heading := range g.steering {
		g.movement.SetHeading(e, heading)
	}

	g.perfCollector.StartPhase(telemetry.PhaseMovement)
	g.movement.Update(dt)

	g.perfCollector.StartPhase(telemetry.PhaseHarden)
	g.updateHarden()

	g.perfCollector.StartPhase(telemetry.PhaseBubbles)
	g.bubbles.Update(g.tick)

	g.perfCollector.StartPhase(telemetry.PhaseDispatch)
	g.bus.Dispatch()

	g.perfCollector.StartPhase(telemetry.PhaseTelemetry)
	g.recordTick()
	g.flushTelemetry()

	g.perfCollector.EndTick()
}

// Tick returns the current simulation tick.
func (g *Game) Tick() int32 {
	return g.tick
}

// Seed returns the seed the game was created with.
func (g *Game) Seed() int64 {
	return g.rngSeed
}

// Bus returns the event bus for external subscribers.
func (g *Game) Bus() *systems.Bus {
	return g.bus
}

// Bubbles returns every live bubble in ID order.
func (g *Game) Bubbles() []ecs.Entity {
	return g.bubbles.Entities()
}

// View returns a copy of e's state.
func (g *Game) View(e ecs.Entity) (systems.BubbleView, bool) {
	return g.bubbles.View(e)
}

// Slowed reports whether e currently uses the slowed movement profile.
func (g *Game) Slowed(e ecs.Entity) bool {
	return g.slowed[e]
}

// Unload flushes and closes output files.
func (g *Game) Unload() {
	if err := g.outputManager.Close(); err != nil {
		slog.Error("failed to close output", "error", err)
	}
	g.outputManager = nil
}
