package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for a time window.
type WindowStats struct {
	WindowStartTick int32   `csv:"-"`
	WindowEndTick   int32   `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	// Population by state at window end
	Bubbles     int `csv:"bubbles"`
	Individuals int `csv:"individuals"`
	Parents     int `csv:"parents"`
	Children    int `csv:"children"`

	// Group shape (a group is a parent and its children)
	GroupSizeMean float64 `csv:"group_size_mean"`
	GroupSizeStd  float64 `csv:"group_size_std"`
	GroupSizeP50  float64 `csv:"group_size_p50"`
	GroupSizeP90  float64 `csv:"group_size_p90"`
	LargestRadius float64 `csv:"largest_radius"`

	// Events during window
	Absorptions    int     `csv:"absorptions"`
	Separations    int     `csv:"separations"`
	Bumps          int     `csv:"bumps"`
	HardenToggles  int     `csv:"harden_toggles"`
	OrphansHealed  int     `csv:"orphans_healed"`
	Destroyed      int     `csv:"destroyed"`
	AbsorptionRate float64 `csv:"absorption_rate"` // per simulated second
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeGroupStats calculates mean, population std, and percentiles.
func ComputeGroupStats(values []float64) (mean, std, p50, p90 float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0
	}

	mean, std = stat.PopMeanStdDev(values, nil)

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	p50 = Percentile(sorted, 0.50)
	p90 = Percentile(sorted, 0.90)

	return mean, std, p50, p90
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("window_start", int(s.WindowStartTick)),
		slog.Int("window_end", int(s.WindowEndTick)),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("bubbles", s.Bubbles),
		slog.Int("individuals", s.Individuals),
		slog.Int("parents", s.Parents),
		slog.Int("children", s.Children),
		slog.Float64("group_size_mean", s.GroupSizeMean),
		slog.Float64("group_size_std", s.GroupSizeStd),
		slog.Float64("group_size_p50", s.GroupSizeP50),
		slog.Float64("group_size_p90", s.GroupSizeP90),
		slog.Float64("largest_radius", s.LargestRadius),
		slog.Int("absorptions", s.Absorptions),
		slog.Int("separations", s.Separations),
		slog.Int("bumps", s.Bumps),
		slog.Int("harden_toggles", s.HardenToggles),
		slog.Int("orphans_healed", s.OrphansHealed),
		slog.Int("destroyed", s.Destroyed),
		slog.Float64("absorption_rate", s.AbsorptionRate),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats", "window", s)
}
