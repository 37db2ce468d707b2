// Package telemetry is local-process observability for the runtime:
// Prometheus counters and histograms for perform calls and traps. This
// is orthogonal to internal/platform.Persistence, which ships tracing
// events to the Superface insights endpoint; telemetry never leaves the
// process unless the caller wires /metrics itself (see Handler).
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

// Metrics is a registered set of collectors for one runtime;
// internal/runtime.New builds one per App. It is safe for concurrent use,
// same as the underlying prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	performTotal    *prometheus.CounterVec
	performDuration *prometheus.HistogramVec
	trapTotal       prometheus.Counter
}

// NewMetrics builds and registers a fresh collector set on its own
// registry, so embedding applications never collide with collectors
// registered on prometheus.DefaultRegisterer.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		performTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "onesdk",
			Name:      "perform_total",
			Help:      "Total number of perform calls, labelled by usecase and outcome.",
		}, []string{"usecase", "outcome"}),
		performDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "onesdk",
			Name:      "perform_duration_seconds",
			Help:      "Perform call latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"usecase"}),
		trapTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "onesdk",
			Name:      "trap_total",
			Help:      "Total number of guest traps that poisoned a runtime instance.",
		}),
	}

	registry.MustRegister(m.performTotal, m.performDuration, m.trapTotal)
	return m
}

// Outcome labels a completed perform call for performTotal.
type Outcome string

const (
	OutcomeSuccess    Outcome = "success"
	OutcomePerform    Outcome = "perform_error"
	OutcomeValidation Outcome = "validation_error"
	OutcomeUnexpected Outcome = "unexpected_error"
)

// ObservePerform records one perform call's outcome and latency.
func (m *Metrics) ObservePerform(usecase string, outcome Outcome, seconds float64) {
	m.performTotal.WithLabelValues(usecase, string(outcome)).Inc()
	m.performDuration.WithLabelValues(usecase).Observe(seconds)
}

// ObserveTrap increments the trap counter. Called whenever wrapCall
// poisons an instance.
func (m *Metrics) ObserveTrap() {
	m.trapTotal.Inc()
}

// Handler exposes the collector set for scraping, mirroring the
// mux.Handle("/metrics", promhttp.Handler()) wiring pattern embedding
// applications use for their own HTTP servers.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
