// Package metrics provides Prometheus collectors for inventory operations.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/go-tangra/go-tangra-license-inventory/internal/apperr"
)

const namespace = "license_inventory"

// Metrics records per-operation outcomes on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	files      *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the standard
// Go and process collectors, on a new registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Inventory operations by name and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Inventory operation latency.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		files: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "file_associations_total",
				Help:      "File association changes by direction.",
			},
			[]string{"direction"},
		),
	}

	registry.MustRegister(m.operations, m.duration, m.files)
	return m
}

// Observe records the outcome and latency of one operation. The outcome
// label is "ok" or the error kind.
func (m *Metrics) Observe(operation string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, Outcome(err)).Inc()
	m.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// FileAssociation counts an effective attach ("attach") or detach ("detach").
func (m *Metrics) FileAssociation(direction string) {
	if m == nil {
		return
	}
	m.files.WithLabelValues(direction).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Outcome maps err to a metric label.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return apperr.KindOf(err).String()
}
