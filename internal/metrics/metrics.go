// Package metrics defines the Prometheus collectors of the serve and index
// commands.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultError = "error"
)

type Metrics struct {
	LookupsTotal         *prometheus.CounterVec
	LookupLatency        *prometheus.HistogramVec
	LookupResultsCount   prometheus.Histogram
	DocsIndexedTotal     prometheus.Counter
	SegmentFlushesTotal  *prometheus.CounterVec
	SegmentFlushDuration prometheus.Histogram
	OpenSegments         prometheus.Gauge

	registry *prometheus.Registry
}

// New creates the collectors and registers them on a registry of their own,
// so several instances can coexist in one process.
func New() *Metrics {
	m := &Metrics{
		LookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempblock_lookups_total",
				Help: "Total term lookups by result (hit, miss, error).",
			},
			[]string{"result"},
		),
		LookupLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tempblock_lookup_latency_seconds",
				Help:    "Term lookup latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"field"},
		),
		LookupResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tempblock_lookup_results_count",
				Help:    "Number of docs returned per lookup.",
				Buckets: []float64{0, 1, 10, 100, 1000, 10000, 100000},
			},
		),
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tempblock_docs_indexed_total",
				Help: "Total documents indexed.",
			},
		),
		SegmentFlushesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempblock_segment_flushes_total",
				Help: "Total segment flushes by status.",
			},
			[]string{"status"},
		),
		SegmentFlushDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tempblock_segment_flush_duration_seconds",
				Help:    "Segment flush duration in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
		OpenSegments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tempblock_open_segments",
				Help: "Number of segments held open by the reader.",
			},
		),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.LookupsTotal,
		m.LookupLatency,
		m.LookupResultsCount,
		m.DocsIndexedTotal,
		m.SegmentFlushesTotal,
		m.SegmentFlushDuration,
		m.OpenSegments,
	)

	return m
}

// Handler returns the scrape handler of this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
