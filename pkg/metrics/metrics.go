// Package metrics defines the Prometheus collectors for library searches and
// writes them in the text exposition format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all collectors of a search run. It implements
// library.Observer.
type Metrics struct {
	registry *prometheus.Registry

	QueriesTotal    *prometheus.CounterVec
	QueryCandidates prometheus.Histogram
	QueryDuration   *prometheus.HistogramVec
	LibrarySpectra  prometheus.Gauge
	LibraryLanes    prometheus.Gauge
}

// New creates the collectors and registers them on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "masskey_queries_total",
				Help: "Total precursor queries by window strategy.",
			},
			[]string{"strategy"},
		),
		QueryCandidates: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "masskey_query_candidates",
				Help:    "Library candidates visited per query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 1000},
			},
		),
		QueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "masskey_query_duration_seconds",
				Help:    "Precursor query latency in seconds.",
				Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
			},
			[]string{"strategy"},
		),
		LibrarySpectra: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "masskey_library_spectra",
				Help: "Spectra in the searched library.",
			},
		),
		LibraryLanes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "masskey_library_lanes",
				Help: "Lanes of the library index, the largest precursor multiplicity.",
			},
		),
	}
	m.registry.MustRegister(
		m.QueriesTotal,
		m.QueryCandidates,
		m.QueryDuration,
		m.LibrarySpectra,
		m.LibraryLanes,
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveQuery records one completed query.
func (m *Metrics) ObserveQuery(strategy string, candidates int, elapsed time.Duration) {
	m.QueriesTotal.WithLabelValues(strategy).Inc()
	m.QueryCandidates.Observe(float64(candidates))
	m.QueryDuration.WithLabelValues(strategy).Observe(elapsed.Seconds())
}

// ObserveLibrary records the size of the searched library.
func (m *Metrics) ObserveLibrary(spectra, lanes int) {
	m.LibrarySpectra.Set(float64(spectra))
	m.LibraryLanes.Set(float64(lanes))
}

// WriteTextfile writes every collector to path, for pickup by a node
// exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
