// Package metrics provides Prometheus instrumentation for the poll loop and
// report generation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hamed0406/sitewatch/internal/domain"
)

const namespace = "sitewatch"

// Metrics holds all Prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	probesTotal       *prometheus.CounterVec
	probeDuration     prometheus.Histogram
	transitionsTotal  *prometheus.CounterVec
	appendErrorsTotal prometheus.Counter
	cycleDuration     prometheus.Histogram
	reportsTotal      *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		probesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "probes_total",
				Help:      "Total number of probes by resulting status",
			},
			[]string{"status"},
		),
		probeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_duration_seconds",
			Help:      "Probe latency in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		transitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_total",
				Help:      "Total number of status transitions written to the event store",
			},
			[]string{"status"},
		),
		appendErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_append_errors_total",
			Help:      "Total number of failed event store appends",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of one poll cycle over all targets",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		reportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reports_total",
				Help:      "Total number of report requests by result",
			},
			[]string{"result"},
		),
	}
	reg.MustRegister(
		m.probesTotal,
		m.probeDuration,
		m.transitionsTotal,
		m.appendErrorsTotal,
		m.cycleDuration,
		m.reportsTotal,
	)
	return m
}

func (m *Metrics) ObserveProbe(status domain.Status, latencyMS float64) {
	if m == nil {
		return
	}
	m.probesTotal.WithLabelValues(status.String()).Inc()
	m.probeDuration.Observe(latencyMS / 1000)
}

func (m *Metrics) ObserveTransition(status domain.Status) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(status.String()).Inc()
}

func (m *Metrics) ObserveAppendError() {
	if m == nil {
		return
	}
	m.appendErrorsTotal.Inc()
}

func (m *Metrics) ObserveCycle(d time.Duration) {
	if m == nil {
		return
	}
	m.cycleDuration.Observe(d.Seconds())
}

// ObserveReport counts a report request; result is one of "ok", "no_data", "error".
func (m *Metrics) ObserveReport(result string) {
	if m == nil {
		return
	}
	m.reportsTotal.WithLabelValues(result).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
