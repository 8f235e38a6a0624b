package game

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/mlange-42/ark/ecs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/bubblecomplex/components"
	"github.com/pthm-cable/bubblecomplex/config"
	"github.com/pthm-cable/bubblecomplex/systems"
	"github.com/pthm-cable/bubblecomplex/telemetry"
)

func newTestGame(t *testing.T, opts Options) *Game {
	t.Helper()
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	g := NewGameWithOptions(opts)
	t.Cleanup(g.Unload)
	return g
}

// checkHierarchy verifies the parent/child links of every bubble.
func checkHierarchy(t *testing.T, g *Game) {
	t.Helper()
	for _, e := range g.Bubbles() {
		v, _ := g.View(e)
		switch v.State {
		case components.StateIndividual:
			if !v.Parent.IsZero() || len(v.Children) != 0 || v.RealRadius != v.IndividualRadius {
				t.Fatalf("tick %d: individual %d inconsistent: %+v", g.Tick(), v.ID, v)
			}
		case components.StateChild:
			p, ok := g.View(v.Parent)
			if !ok || p.State != components.StateParent || len(v.Children) != 0 || v.RealRadius != 0 {
				t.Fatalf("tick %d: child %d inconsistent: %+v", g.Tick(), v.ID, v)
			}
		case components.StateParent:
			if len(v.Children) == 0 || !v.Parent.IsZero() {
				t.Fatalf("tick %d: parent %d inconsistent: %+v", g.Tick(), v.ID, v)
			}
			for _, c := range v.Children {
				cv, _ := g.View(c)
				if cv.Parent != e {
					t.Fatalf("tick %d: parent %d lists %d which points at %v", g.Tick(), v.ID, cv.ID, cv.Parent)
				}
			}
		}
	}
}

func TestNewGame_InitialPopulation(t *testing.T) {
	cfg := config.Default()
	g := newTestGame(t, Options{Seed: 1, Config: cfg})

	want := cfg.Population.Player.Count + cfg.Population.Friendly.Count + cfg.Population.Negative.Count
	if got := len(g.Bubbles()); got != want {
		t.Fatalf("bubbles = %d, want %d", got, want)
	}
	for _, e := range g.Bubbles() {
		v, _ := g.View(e)
		if v.State != components.StateIndividual {
			t.Errorf("bubble %d starts as %v", v.ID, v.State)
		}
		if v.IndividualPosition.X < 0 || v.IndividualPosition.X > cfg.World.Width {
			t.Errorf("bubble %d spawned outside the world: %v", v.ID, v.IndividualPosition)
		}
	}
}

func TestSpawn_Validation(t *testing.T) {
	g := newTestGame(t, Options{EmptyWorld: true})

	tests := []struct {
		name string
		spec BubbleSpec
		want error
	}{
		{"zero radius", BubbleSpec{Category: components.CategoryFriendly, Radius: 0, ChildWeight: 1}, ErrInvalidRadius},
		{"negative radius", BubbleSpec{Category: components.CategoryFriendly, Radius: -2, ChildWeight: 1}, ErrInvalidRadius},
		{"nan radius", BubbleSpec{Category: components.CategoryFriendly, Radius: math.NaN(), ChildWeight: 1}, ErrInvalidRadius},
		{"infinite radius", BubbleSpec{Category: components.CategoryFriendly, Radius: math.Inf(1), ChildWeight: 1}, ErrInvalidRadius},
		{"negative weight", BubbleSpec{Category: components.CategoryFriendly, Radius: 3, ChildWeight: -0.5}, ErrInvalidWeight},
		{"nan weight", BubbleSpec{Category: components.CategoryFriendly, Radius: 3, ChildWeight: math.NaN()}, ErrInvalidWeight},
		{"unknown category", BubbleSpec{Category: components.Category(7), Radius: 3, ChildWeight: 1}, ErrInvalidCategory},
		{"valid", BubbleSpec{Category: components.CategoryNegative, Radius: 3, ChildWeight: 0}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := g.Spawn(tt.spec)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Spawn error = %v, want %v", err, tt.want)
			}
			if tt.want != nil && !e.IsZero() {
				t.Error("failed spawn should return the zero entity")
			}
		})
	}

	if got := len(g.Bubbles()); got != 1 {
		t.Errorf("bubbles = %d, want only the valid spawn", got)
	}
}

func TestSpawn_DefaultChildWeight(t *testing.T) {
	cfg := config.Default()
	cfg.Absorption.DefaultChildWeight = 0.25
	g := newTestGame(t, Options{EmptyWorld: true, Config: cfg})

	e, err := g.Spawn(BubbleSpec{Category: components.CategoryFriendly, Radius: 4, ChildWeight: DefaultChildWeight})
	if err != nil {
		t.Fatal(err)
	}
	v, _ := g.View(e)
	if v.ChildWeightRatio != 0.25 {
		t.Errorf("ChildWeightRatio = %v, want 0.25", v.ChildWeightRatio)
	}
}

func TestDestroy_Unknown(t *testing.T) {
	g := newTestGame(t, Options{EmptyWorld: true})
	e, _ := g.Spawn(BubbleSpec{Category: components.CategoryFriendly, Radius: 4, ChildWeight: 1})

	if err := g.Destroy(e); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if err := g.Destroy(e); !errors.Is(err, ErrUnknownEntity) {
		t.Errorf("second Destroy error = %v, want ErrUnknownEntity", err)
	}
	if err := g.SetHardened(e, true); !errors.Is(err, ErrUnknownEntity) {
		t.Errorf("SetHardened on destroyed bubble = %v, want ErrUnknownEntity", err)
	}
	if err := g.SetHardened(ecs.Entity{}, true); !errors.Is(err, ErrUnknownEntity) {
		t.Errorf("SetHardened on zero entity = %v, want ErrUnknownEntity", err)
	}
}

func TestHeadlessRun_HierarchyStaysConsistent(t *testing.T) {
	g := newTestGame(t, Options{Seed: 42, StepsPerUpdate: 10})

	for i := 0; i < 60; i++ {
		g.UpdateHeadless()
		checkHierarchy(t, g)
	}
	if g.Tick() != 600 {
		t.Errorf("Tick = %d, want 600", g.Tick())
	}
}

func TestRequestHarden_MinimumTime(t *testing.T) {
	cfg := config.Default()
	g := newTestGame(t, Options{EmptyWorld: true, Config: cfg})
	p, _ := g.Spawn(BubbleSpec{Category: components.CategoryPlayer, Radius: 10, ChildWeight: 1, Position: r2.Vec{X: 800, Y: 450}})

	if err := g.RequestHarden(p, true); err != nil {
		t.Fatal(err)
	}
	g.Step()
	if v, _ := g.View(p); !v.Hardened {
		t.Fatal("player should harden on press")
	}

	g.RequestHarden(p, false)
	for i := int32(1); i < cfg.Derived.MinHardenTicks; i++ {
		g.Step()
	}
	if v, _ := g.View(p); !v.Hardened {
		t.Fatal("release before the minimum time should be ignored")
	}

	g.Step()
	if v, _ := g.View(p); v.Hardened {
		t.Error("release after the minimum time should unharden")
	}

	f, _ := g.Spawn(BubbleSpec{Category: components.CategoryFriendly, Radius: 3, ChildWeight: 1})
	if err := g.RequestHarden(f, true); !errors.Is(err, ErrUnknownEntity) {
		t.Errorf("RequestHarden on a non-player = %v, want ErrUnknownEntity", err)
	}
}

func TestPlayerSlowedWhileHeldByNegative(t *testing.T) {
	g := newTestGame(t, Options{EmptyWorld: true})
	p, _ := g.Spawn(BubbleSpec{Category: components.CategoryPlayer, Radius: 10, ChildWeight: 1, Position: r2.Vec{X: 400, Y: 400}})
	n, _ := g.Spawn(BubbleSpec{Category: components.CategoryNegative, Radius: 2, ChildWeight: 1, Position: r2.Vec{X: 405, Y: 400}})

	g.Step()
	if v, _ := g.View(p); v.State != components.StateChild || v.Parent != n {
		t.Fatalf("player should be absorbed by the negative, got %+v", v)
	}
	if !g.Slowed(p) {
		t.Fatal("player held by a negative should be slowed")
	}

	g.SetIndividualPosition(p, r2.Vec{X: 1200, Y: 700})
	g.Step()
	if v, _ := g.View(p); v.State != components.StateIndividual {
		t.Fatalf("player should have separated, got %v", v.State)
	}
	if g.Slowed(p) {
		t.Error("player should no longer be slowed after leaving")
	}
}

func TestStatsCallbackAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	var windows []telemetry.WindowStats
	g := newTestGame(t, Options{
		Seed:           3,
		StatsWindowSec: 0.5,
		Metrics:        telemetry.NewMetrics(reg),
		StatsCallback:  func(s telemetry.WindowStats) { windows = append(windows, s) },
	})

	perWindow := int(g.collector.WindowDurationTicks())
	for i := 0; i < 3*perWindow; i++ {
		g.Step()
	}

	if len(windows) != 3 {
		t.Fatalf("windows = %d, want 3", len(windows))
	}
	last := windows[len(windows)-1]
	if last.Bubbles != len(g.Bubbles()) {
		t.Errorf("window bubbles = %d, want %d", last.Bubbles, len(g.Bubbles()))
	}
	if last.Individuals+last.Parents+last.Children != last.Bubbles {
		t.Error("state counts do not add up")
	}

	m := g.metrics
	if got := testutil.ToFloat64(m.TicksTotal); got != float64(3*perWindow) {
		t.Errorf("ticks_total = %v, want %d", got, 3*perWindow)
	}
	if got := testutil.ToFloat64(m.Population.WithLabelValues("Individual")); got != float64(last.Individuals) {
		t.Errorf("population[Individual] = %v, want %d", got, last.Individuals)
	}
}

func TestOutputDir(t *testing.T) {
	dir := t.TempDir()
	g := NewGameWithOptions(Options{
		Seed:           5,
		Config:         config.Default(),
		OutputDir:      dir,
		StatsWindowSec: 0.25,
	})

	for i := 0; i < 120; i++ {
		g.Step()
	}
	g.Unload()

	for _, name := range []string{"telemetry.csv", "perf.csv", "events.csv", "config.yaml"} {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		if name != "events.csv" && info.Size() == 0 {
			t.Errorf("%s is empty", name)
		}
	}
}

func TestDeterministicWithSeed(t *testing.T) {
	run := func() []float64 {
		g := newTestGame(t, Options{Seed: 99})
		for i := 0; i < 300; i++ {
			g.Step()
		}
		var radii []float64
		for _, e := range g.Bubbles() {
			v, _ := g.View(e)
			radii = append(radii, v.RealRadius, v.IndividualPosition.X)
		}
		return radii
	}

	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("population differs: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("value %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestListenerCallsDuringDispatch(t *testing.T) {
	g := newTestGame(t, Options{EmptyWorld: true})
	a, _ := g.Spawn(BubbleSpec{Category: components.CategoryFriendly, Radius: 6, ChildWeight: 1, Position: r2.Vec{X: 400, Y: 400}})
	b, _ := g.Spawn(BubbleSpec{Category: components.CategoryFriendly, Radius: 2, ChildWeight: 1, Position: r2.Vec{X: 401, Y: 400}})
	c, _ := g.Spawn(BubbleSpec{Category: components.CategoryFriendly, Radius: 6, ChildWeight: 1, Position: r2.Vec{X: 1000, Y: 400}})
	d, _ := g.Spawn(BubbleSpec{Category: components.CategoryFriendly, Radius: 2, ChildWeight: 1, Position: r2.Vec{X: 1001, Y: 400}})

	counts := make(map[systems.EventType]int)
	g.Bus().SubscribeAll(systems.ListenerFunc(func(ev systems.Event) {
		if ev.Subject == a || ev.Subject == d {
			counts[ev.Type]++
		}
	}))
	g.Bus().Subscribe(a, systems.ListenerFunc(func(ev systems.Event) {
		if ev.Type == systems.EventAbsorbedOther {
			if err := g.SetHardened(ev.Other, true); err != nil {
				t.Errorf("SetHardened from listener: %v", err)
			}
		}
	}))
	g.Bus().Subscribe(d, systems.ListenerFunc(func(ev systems.Event) {
		if ev.Type == systems.EventAbsorbedByOther {
			if err := g.Destroy(d); err != nil {
				t.Errorf("Destroy from listener: %v", err)
			}
		}
	}))

	g.Step()

	if got := counts[systems.EventAbsorbedOther]; got != 1 {
		t.Errorf("AbsorbedOther delivered to A %d times, want 1", got)
	}
	if got := counts[systems.EventAbsorbedByOther]; got != 1 {
		t.Errorf("AbsorbedByOther delivered to D %d times, want 1", got)
	}
	if got := counts[systems.EventDestroyed]; got != 1 {
		t.Errorf("Destroyed delivered to D %d times, want 1", got)
	}
	if v, _ := g.View(b); !v.Hardened {
		t.Error("B should have been hardened by the listener")
	}
	if v, _ := g.View(c); v.State != components.StateIndividual {
		t.Errorf("C state = %v, want individual after its only child was destroyed", v.State)
	}
}

func TestSetHardened_SyncsController(t *testing.T) {
	cfg := config.Default()
	g := newTestGame(t, Options{EmptyWorld: true, Config: cfg})
	p, _ := g.Spawn(BubbleSpec{Category: components.CategoryPlayer, Radius: 10, ChildWeight: 1, Position: r2.Vec{X: 800, Y: 450}})

	if err := g.SetHardened(p, true); err != nil {
		t.Fatal(err)
	}
	for i := int32(0); i < cfg.Derived.MinHardenTicks; i++ {
		g.Step()
	}
	if v, _ := g.View(p); !v.Hardened {
		t.Fatal("forced harden released before the minimum time")
	}
	g.Step()
	if v, _ := g.View(p); v.Hardened {
		t.Fatal("released button should clear a forced harden after the minimum time")
	}

	g.RequestHarden(p, true)
	g.Step()
	g.SetHardened(p, false)
	g.Step()
	if v, _ := g.View(p); !v.Hardened {
		t.Error("held button should re-harden after a forced release")
	}
}
