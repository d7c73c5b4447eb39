package runner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects packing counters. A nil *Metrics records nothing.
type Metrics struct {
	circlesPlaced prometheus.Counter
	levelAdvances prometheus.Counter
	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
}

// NewMetrics registers the packing collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		circlesPlaced: factory.NewCounter(prometheus.CounterOpts{
			Name: "bestcandidate_circles_placed_total",
			Help: "Total circles placed across all packing runs",
		}),
		levelAdvances: factory.NewCounter(prometheus.CounterOpts{
			Name: "bestcandidate_level_advances_total",
			Help: "Total radius level advances across all packing runs",
		}),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bestcandidate_runs_total",
			Help: "Completed packing runs by termination reason",
		}, []string{"reason"}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "bestcandidate_run_duration_seconds",
			Help:    "Packing run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		}),
	}
}

func (m *Metrics) placed() {
	if m == nil {
		return
	}
	m.circlesPlaced.Inc()
}

func (m *Metrics) levelAdvanced() {
	if m == nil {
		return
	}
	m.levelAdvances.Inc()
}

func (m *Metrics) finished(reason string, seconds float64) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(reason).Inc()
	m.runDuration.Observe(seconds)
}
