package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	// quota
	QuotaDenialsTotal prometheus.Counter
	TestOutcomesTotal *prometheus.CounterVec

	// streaming
	StreamOutcomesTotal  *prometheus.CounterVec
	StreamFallbacksTotal prometheus.Counter

	// billing
	BillingOutcomesTotal *prometheus.CounterVec
	BillingRunDuration   prometheus.Histogram
	PaymentsTotal        *prometheus.CounterVec

	// best-effort actions that failed
	CompensationFailuresTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors on registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		QuotaDenialsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "saju_quota_denials_total",
			Help: "Test requests refused for lack of remaining tests",
		}),
		TestOutcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saju_test_outcomes_total",
			Help: "Blocking analyses by outcome",
		}, []string{"outcome"}),
		StreamOutcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saju_stream_outcomes_total",
			Help: "Streamed analyses by provider and outcome",
		}, []string{"provider", "outcome"}),
		StreamFallbacksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "saju_stream_fallbacks_total",
			Help: "Streams restarted on the fallback provider",
		}),
		BillingOutcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saju_billing_outcomes_total",
			Help: "Daily billing rows by outcome",
		}, []string{"outcome"}),
		BillingRunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "saju_billing_run_duration_seconds",
			Help:    "Duration of a daily billing run",
			Buckets: prometheus.DefBuckets,
		}),
		PaymentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saju_payments_total",
			Help: "Processor calls by kind and result",
		}, []string{"kind", "result"}),
		CompensationFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saju_compensation_failures_total",
			Help: "Best-effort follow-up writes or calls that failed",
		}, []string{"action"}),
	}

	registry.MustRegister(
		m.QuotaDenialsTotal,
		m.TestOutcomesTotal,
		m.StreamOutcomesTotal,
		m.StreamFallbacksTotal,
		m.BillingOutcomesTotal,
		m.BillingRunDuration,
		m.PaymentsTotal,
		m.CompensationFailuresTotal,
	)
	return m
}

// NewDefaultMetrics registers on a fresh registry that also carries the Go
// runtime and process collectors.
func NewDefaultMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewMetrics(registry)
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Compensation(action string) {
	m.CompensationFailuresTotal.WithLabelValues(action).Inc()
}
