package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pthm-cable/bubblecomplex/components"
	"github.com/pthm-cable/bubblecomplex/systems"
)

const metricsNamespace = "bubbles"

// Metrics exports simulation counters and gauges to Prometheus.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// EventsTotal counts dispatched events. Labels: type
	EventsTotal *prometheus.CounterVec

	// Population is the bubble count per hierarchy state. Labels: state
	Population *prometheus.GaugeVec

	// TicksTotal counts simulation ticks.
	TicksTotal prometheus.Counter

	// LargestRadius is the real radius of the largest group.
	LargestRadius prometheus.Gauge
}

// NewMetrics creates and registers the simulation metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_total",
			Help:      "Total bubble events dispatched, by type",
		}, []string{"type"}),
		Population: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "population",
			Help:      "Number of bubbles in each hierarchy state",
		}, []string{"state"}),
		TicksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "ticks_total",
			Help:      "Total simulation ticks",
		}),
		LargestRadius: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "largest_radius",
			Help:      "Real radius of the largest bubble group",
		}),
	}
}

// ObserveEvent counts ev.
func (m *Metrics) ObserveEvent(ev systems.Event) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(ev.Type.String()).Inc()
}

// ObserveTick counts one simulation tick.
func (m *Metrics) ObserveTick() {
	if m == nil {
		return
	}
	m.TicksTotal.Inc()
}

// ObservePopulation sets the population gauges from a snapshot.
func (m *Metrics) ObservePopulation(pop Population) {
	if m == nil {
		return
	}
	m.Population.WithLabelValues(components.StateIndividual.String()).Set(float64(pop.Individuals))
	m.Population.WithLabelValues(components.StateParent.String()).Set(float64(pop.Parents))
	m.Population.WithLabelValues(components.StateChild.String()).Set(float64(pop.Children))

	var largest float64
	for _, r := range pop.GroupRadii {
		if r > largest {
			largest = r
		}
	}
	m.LargestRadius.Set(largest)
}
