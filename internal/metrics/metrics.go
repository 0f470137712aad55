// Package metrics exposes the dashboard's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/slopezpereyra/icf-visualization-app/internal/dataset"
)

// Metrics holds all application metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Dashboard metrics
	ChartBuildsTotal    *prometheus.CounterVec
	LookupFailuresTotal *prometheus.CounterVec

	// Dataset metrics
	TableRows     *prometheus.GaugeVec
	TrialsDropped prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New registers every collector on a fresh registry, together with the
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry registers the collectors on reg and serves from g.
func NewWithRegistry(reg prometheus.Registerer, g prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "icf_http_requests_total",
				Help: "Total number of HTTP requests by method, route, and status",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "icf_http_request_duration_seconds",
				Help:    "Histogram of request durations by method and route",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "route"},
		),

		ChartBuildsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "icf_chart_builds_total",
				Help: "Total number of chart specs built, by chart kind",
			},
			[]string{"kind"},
		),
		LookupFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "icf_lookup_failures_total",
				Help: "Total number of failed single-subject lookups, by reason",
			},
			[]string{"reason"},
		),

		TableRows: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "icf_table_rows",
				Help: "Rows held per loaded table",
			},
			[]string{"table"},
		),
		TrialsDropped: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "icf_trials_dropped",
				Help: "Trial rows dropped at load because their ISI was zero",
			},
		),

		gatherer: g,
	}
}

// ChartBuilt counts one chart build.
func (m *Metrics) ChartBuilt(id string) {
	m.ChartBuildsTotal.WithLabelValues(id).Inc()
}

// LookupFailed counts one failed subject lookup.
func (m *Metrics) LookupFailed(reason string) {
	m.LookupFailuresTotal.WithLabelValues(reason).Inc()
}

// ObserveLoad publishes the table sizes of a completed load.
func (m *Metrics) ObserveLoad(info dataset.LoadInfo) {
	for table, n := range info.Rows {
		m.TableRows.WithLabelValues(table).Set(float64(n))
	}
	m.TrialsDropped.Set(float64(info.TrialsDropped))
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
