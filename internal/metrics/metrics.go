// Package metrics provides the Prometheus metrics exported by the daemon.
//
// All recording methods are safe on a nil *Metrics so components can be
// constructed without a registry in tests and one-shot CLI commands.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the librarian collectors.
type Metrics struct {
	ProviderLookups *prometheus.CounterVec
	ProviderLatency *prometheus.HistogramVec
	BreakerState    *prometheus.GaugeVec
	LayerOutcomes   *prometheus.CounterVec
	QueueDepth      prometheus.Gauge
	Fixes           *prometheus.CounterVec
	registry        *prometheus.Registry
}

// New creates the collectors and registers them with registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register librarian metrics: %w", err)
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.ProviderLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "librarian",
		Name:      "provider_lookups_total",
		Help:      "Metadata provider lookups by provider and result.",
	}, []string{"provider", "result"})

	m.ProviderLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "librarian",
		Name:      "provider_lookup_duration_seconds",
		Help:      "Duration of metadata provider calls in seconds.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"provider"})

	m.BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "librarian",
		Name:      "provider_breaker_state",
		Help:      "Circuit breaker state per provider (0 closed, 1 half-open, 2 open).",
	}, []string{"provider"})

	m.LayerOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "librarian",
		Name:      "pipeline_outcomes_total",
		Help:      "Pipeline step results by layer and outcome.",
	}, []string{"layer", "outcome"})

	m.QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "librarian",
		Name:      "queue_depth",
		Help:      "Books waiting in the identification queue.",
	})

	m.Fixes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "librarian",
		Name:      "fixes_total",
		Help:      "Fix classifications, applies and undos.",
	}, []string{"action", "result"})
}

// Registry returns the registry the metrics were registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveLookup records one provider call.
func (m *Metrics) ObserveLookup(provider, result string, seconds float64) {
	if m == nil {
		return
	}
	m.ProviderLookups.WithLabelValues(provider, result).Inc()
	if seconds > 0 {
		m.ProviderLatency.WithLabelValues(provider).Observe(seconds)
	}
}

// SetBreakerState records a breaker transition.
func (m *Metrics) SetBreakerState(provider string, state int) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(provider).Set(float64(state))
}

// RecordOutcome counts a pipeline step result.
func (m *Metrics) RecordOutcome(layer, outcome string) {
	if m == nil {
		return
	}
	m.LayerOutcomes.WithLabelValues(layer, outcome).Inc()
}

// SetQueueDepth records the current queue size.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

// RecordFix counts a fixer action.
func (m *Metrics) RecordFix(action, result string) {
	if m == nil {
		return
	}
	m.Fixes.WithLabelValues(action, result).Inc()
}

// Collect implements the prometheus.Collector interface.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.ProviderLookups.Collect(ch)
	m.ProviderLatency.Collect(ch)
	m.BreakerState.Collect(ch)
	m.LayerOutcomes.Collect(ch)
	ch <- m.QueueDepth
	m.Fixes.Collect(ch)
}

// Describe implements the prometheus.Collector interface.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.ProviderLookups.Describe(ch)
	m.ProviderLatency.Describe(ch)
	m.BreakerState.Describe(ch)
	m.LayerOutcomes.Describe(ch)
	ch <- m.QueueDepth.Desc()
	m.Fixes.Describe(ch)
}
