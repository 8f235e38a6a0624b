package telemetry

import (
	"log/slog"
	"slices"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Phase is one timed section of a simulation step.
type Phase uint8

// Step phases in execution order.
const (
	PhaseDrift Phase = iota
	PhaseMovement
	PhaseHarden
	PhaseBubbles
	PhaseDispatch
	PhaseTelemetry

	numPhases
	phaseNone = numPhases
)

var phaseNames = [numPhases]string{"drift", "movement", "harden", "bubbles", "dispatch", "telemetry"}

func (p Phase) String() string {
	if p < numPhases {
		return phaseNames[p]
	}
	return "none"
}

// Phases lists the step phases in execution order.
var Phases = []Phase{
	PhaseDrift, PhaseMovement, PhaseHarden, PhaseBubbles, PhaseDispatch, PhaseTelemetry,
}

// PerfSample holds timing data for a single tick.
type PerfSample struct {
	Tick   time.Duration
	Phases [numPhases]time.Duration
}

// PerfCollector keeps tick timings over a rolling window of ticks.
type PerfCollector struct {
	samples []PerfSample
	next    int
	count   int

	current    PerfSample
	tickStart  time.Time
	phaseStart time.Time
	phase      Phase
}

// NewPerfCollector creates a collector averaging over windowSize ticks.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 60
	}
	return &PerfCollector{
		samples: make([]PerfSample, windowSize),
		phase:   phaseNone,
	}
}

// StartTick begins timing a new simulation tick.
func (p *PerfCollector) StartTick() {
	p.tickStart = time.Now()
	p.current = PerfSample{}
	p.phase = phaseNone
}

// StartPhase closes the running phase, if any, and starts timing phase.
func (p *PerfCollector) StartPhase(phase Phase) {
	now := time.Now()
	p.closePhase(now)
	p.phaseStart = now
	p.phase = phase
}

// EndTick closes the running phase and records the tick.
func (p *PerfCollector) EndTick() {
	now := time.Now()
	p.closePhase(now)
	p.current.Tick = now.Sub(p.tickStart)

	p.samples[p.next] = p.current
	p.next = (p.next + 1) % len(p.samples)
	if p.count < len(p.samples) {
		p.count++
	}
	p.phase = phaseNone
}

func (p *PerfCollector) closePhase(now time.Time) {
	if p.phase < numPhases {
		p.current.Phases[p.phase] += now.Sub(p.phaseStart)
	}
}

// PerfStats holds aggregated tick timings.
type PerfStats struct {
	AvgTick time.Duration
	MinTick time.Duration
	MaxTick time.Duration
	P90Tick time.Duration

	PhaseAvg [numPhases]time.Duration
	PhasePct [numPhases]float64 // share of the average tick, 0..100

	TicksPerSecond float64
}

// Stats aggregates the samples currently in the window.
func (p *PerfCollector) Stats() PerfStats {
	var s PerfStats
	if p.count == 0 {
		return s
	}

	ticks := make([]float64, 0, p.count)
	var phaseSum [numPhases]time.Duration
	for _, sample := range p.samples[:p.count] {
		ticks = append(ticks, float64(sample.Tick))
		for i, d := range sample.Phases {
			phaseSum[i] += d
		}
	}
	slices.Sort(ticks)

	n := time.Duration(p.count)
	s.AvgTick = time.Duration(stat.Mean(ticks, nil))
	s.MinTick = time.Duration(ticks[0])
	s.MaxTick = time.Duration(ticks[len(ticks)-1])
	s.P90Tick = time.Duration(stat.Quantile(0.9, stat.Empirical, ticks, nil))

	for i, sum := range phaseSum {
		s.PhaseAvg[i] = sum / n
		if s.AvgTick > 0 {
			s.PhasePct[i] = float64(s.PhaseAvg[i]) / float64(s.AvgTick) * 100
		}
	}
	if s.AvgTick > 0 {
		s.TicksPerSecond = float64(time.Second) / float64(s.AvgTick)
	}
	return s
}

// LogStats logs the timings at info level.
func (s PerfStats) LogStats() {
	slog.Info("perf", "perf", s)
}

// LogValue implements slog.LogValuer. Phases under 0.1% are omitted.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_tick_us", s.AvgTick.Microseconds()),
		slog.Int64("p90_tick_us", s.P90Tick.Microseconds()),
		slog.Int64("max_tick_us", s.MaxTick.Microseconds()),
		slog.Int("ticks_per_sec", int(s.TicksPerSecond)),
	}
	for _, phase := range Phases {
		if pct := s.PhasePct[phase]; pct > 0.1 {
			attrs = append(attrs, slog.Float64(phase.String()+"_pct", float64(int(pct*10))/10))
		}
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is a flat struct for CSV export of performance stats.
type PerfStatsCSV struct {
	WindowEnd    int32   `csv:"window_end"`
	AvgTickUS    int64   `csv:"avg_tick_us"`
	MinTickUS    int64   `csv:"min_tick_us"`
	MaxTickUS    int64   `csv:"max_tick_us"`
	P90TickUS    int64   `csv:"p90_tick_us"`
	TicksPerSec  float64 `csv:"ticks_per_sec"`
	DriftPct     float64 `csv:"drift_pct"`
	MovementPct  float64 `csv:"movement_pct"`
	HardenPct    float64 `csv:"harden_pct"`
	BubblesPct   float64 `csv:"bubbles_pct"`
	DispatchPct  float64 `csv:"dispatch_pct"`
	TelemetryPct float64 `csv:"telemetry_pct"`
}

// ToCSV flattens s into a perf.csv row.
func (s PerfStats) ToCSV(windowEnd int32) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:    windowEnd,
		AvgTickUS:    s.AvgTick.Microseconds(),
		MinTickUS:    s.MinTick.Microseconds(),
		MaxTickUS:    s.MaxTick.Microseconds(),
		P90TickUS:    s.P90Tick.Microseconds(),
		TicksPerSec:  s.TicksPerSecond,
		DriftPct:     s.PhasePct[PhaseDrift],
		MovementPct:  s.PhasePct[PhaseMovement],
		HardenPct:    s.PhasePct[PhaseHarden],
		BubblesPct:   s.PhasePct[PhaseBubbles],
		DispatchPct:  s.PhasePct[PhaseDispatch],
		TelemetryPct: s.PhasePct[PhaseTelemetry],
	}
}
