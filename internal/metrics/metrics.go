// Package metrics provides Prometheus collectors for simulation runs and jobs.
package metrics

import (
	"net/http"
	"time"

	"github.com/iwvelando/risk-forecast/internal/simulation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "riskforecast"

// Metrics holds the collectors registered for one process. It implements
// simulation.Observer.
type Metrics struct {
	registry *prometheus.Registry

	runsTotal       *prometheus.CounterVec
	runDuration     prometheus.Histogram
	iterationsTotal prometheus.Counter
	jobsActive      prometheus.Gauge
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "simulation",
				Name:      "runs_total",
				Help:      "Total simulation runs by outcome",
			},
			[]string{"outcome"},
		),
		runDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "simulation",
				Name:      "duration_seconds",
				Help:      "Wall time of simulation runs",
				Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
			},
		),
		iterationsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "simulation",
				Name:      "iterations_total",
				Help:      "Iterations completed by successful runs",
			},
		),
		jobsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "jobs_active",
				Help:      "Simulation jobs currently queued or running",
			},
		),
	}
}

// ObserveRun records one engine run.
func (m *Metrics) ObserveRun(outcome string, iterations int, elapsed time.Duration) {
	m.runsTotal.WithLabelValues(outcome).Inc()
	m.runDuration.Observe(elapsed.Seconds())
	if outcome == simulation.OutcomeSuccess && iterations > 0 {
		m.iterationsTotal.Add(float64(iterations))
	}
}

// JobsActive returns the active jobs gauge.
func (m *Metrics) JobsActive() prometheus.Gauge {
	return m.jobsActive
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
