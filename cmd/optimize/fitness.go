package main

import (
	"math"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/bubblecomplex/config"
	"github.com/pthm-cable/bubblecomplex/game"
	"github.com/pthm-cable/bubblecomplex/telemetry"
)

// FitnessEvaluator runs headless simulations and computes fitness.
type FitnessEvaluator struct {
	params      *ParamVector
	maxTicks    int32
	seeds       []int64
	baseConfig  *config.Config
	statsWindow float64
	target      Target

	mu          sync.Mutex
	lastQuality float64 // quality from most recent Evaluate call
}

// Target describes the aggregation behaviour the tuner aims for.
type Target struct {
	GroupSize       float64 // mean bubbles per group (parent + children)
	GroupedFraction float64 // share of bubbles inside a group
	ChurnPerSec     float64 // absorptions + separations per bubble per second
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, maxTicks int32, seeds []int64, baseCfg *config.Config, target Target) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		maxTicks:    maxTicks,
		seeds:       seeds,
		baseConfig:  baseCfg,
		statsWindow: 5.0,
		target:      target,
	}
}

// LastQuality returns the quality score from the most recent evaluation.
func (fe *FitnessEvaluator) LastQuality() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastQuality
}

// Evaluate computes fitness for a parameter vector (lower = better).
// Fitness is the negated mean quality across seeds.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	qualities := make([]float64, len(fe.seeds))

	var g errgroup.Group
	for i, seed := range fe.seeds {
		g.Go(func() error {
			windows := fe.runSimulation(x, seed)
			qualities[i] = computeQuality(windows, fe.target, fe.baseConfig.Physics.DT)
			return nil
		})
	}
	_ = g.Wait()

	quality := stat.Mean(qualities, nil)

	fe.mu.Lock()
	fe.lastQuality = quality
	fe.mu.Unlock()

	return -quality
}

// runSimulation executes a single headless run and returns its windows.
func (fe *FitnessEvaluator) runSimulation(x []float64, seed int64) []telemetry.WindowStats {
	cfg := fe.copyConfig()
	fe.params.ApplyToConfig(cfg, x)

	var windows []telemetry.WindowStats
	g := game.NewGameWithOptions(game.Options{
		Seed:           seed,
		StatsWindowSec: fe.statsWindow,
		StepsPerUpdate: 1,
		Config:         cfg,
		StatsCallback: func(stats telemetry.WindowStats) {
			windows = append(windows, stats)
		},
	})
	defer g.Unload()

	for g.Tick() < fe.maxTicks {
		g.UpdateHeadless()
	}
	return windows
}

// copyConfig creates a deep copy of the base config.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg := *fe.baseConfig
	cfg.Absorption.MergeLayers = slices.Clone(fe.baseConfig.Absorption.MergeLayers)
	return &cfg
}

// Quality component weights.
const (
	qualityWeightGroupSize = 0.35
	qualityWeightGrouped   = 0.25
	qualityWeightChurn     = 0.20
	qualityWeightStability = 0.20

	qualityWarmupWindows = 2 // skip first N windows (warmup)
)

// computeQuality scores aggregation behaviour in [0, 1] from window stats.
func computeQuality(windows []telemetry.WindowStats, target Target, dt float64) float64 {
	if len(windows) <= qualityWarmupWindows {
		return 0
	}
	valid := windows[qualityWarmupWindows:]

	var sizeSum, churnSum float64
	var sizeCount int
	grouped := make([]float64, 0, len(valid))

	for _, w := range valid {
		if w.Bubbles == 0 {
			continue
		}

		frac := float64(w.Parents+w.Children) / float64(w.Bubbles)
		grouped = append(grouped, frac)

		if w.Parents > 0 {
			d := (w.GroupSizeMean - target.GroupSize) / math.Max(target.GroupSize/2, 1)
			sizeSum += math.Exp(-d * d)
			sizeCount++
		}

		secs := float64(w.WindowEndTick-w.WindowStartTick) * dt
		if secs > 0 {
			churn := float64(w.Absorptions+w.Separations) / float64(w.Bubbles) / secs
			d := math.Log((churn + 1e-6) / target.ChurnPerSec)
			churnSum += math.Exp(-d * d / 2)
		}
	}

	if len(grouped) == 0 {
		return 0
	}

	sizeScore := 0.0
	if sizeCount > 0 {
		sizeScore = sizeSum / float64(sizeCount)
	}

	meanFrac := stat.Mean(grouped, nil)
	d := (meanFrac - target.GroupedFraction) / 0.2
	groupedScore := math.Exp(-d * d)

	churnScore := churnSum / float64(len(grouped))

	stabilityScore := 0.0
	if len(grouped) >= 2 && meanFrac > 0 {
		cv := stat.StdDev(grouped, nil) / meanFrac
		stabilityScore = math.Exp(-cv * cv)
	}

	quality := qualityWeightGroupSize*sizeScore +
		qualityWeightGrouped*groupedScore +
		qualityWeightChurn*churnScore +
		qualityWeightStability*stabilityScore

	return min(max(quality, 0), 1)
}
