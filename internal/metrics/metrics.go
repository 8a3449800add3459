// Package metrics exposes Prometheus collectors for the scheduler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mtsched"

// Metrics groups the collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	// RangesAppended counts records appended, by mode ("primary", "secondary").
	RangesAppended *prometheus.CounterVec
	// SelectionErrors counts rejected selection events, by reason.
	SelectionErrors *prometheus.CounterVec
	// Sessions is the number of live sessions.
	Sessions prometheus.Gauge
	// BusyFetches counts ICS feed fetches, by result ("ok", "cached", "error").
	BusyFetches *prometheus.CounterVec
}

// New registers all collectors plus the Go runtime collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RangesAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ranges_appended_total",
			Help:      "Formatted ranges appended to session logs.",
		}, []string{"mode"}),
		SelectionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selection_errors_total",
			Help:      "Selection events that could not be formatted.",
		}, []string{"reason"}),
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Sessions currently held in memory.",
		}),
		BusyFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "busy_fetches_total",
			Help:      "ICS busy feed fetches.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		m.RangesAppended,
		m.SelectionErrors,
		m.Sessions,
		m.BusyFetches,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the exposition format for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
