// Package metric provides the Prometheus metrics surface for the query
// engine. A Registry owns the underlying prometheus registry; Metrics holds
// every engine-level collector.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry wraps a dedicated prometheus registry so tests and embedders do
// not collide with the global default registry.
type Registry struct {
	reg *prometheus.Registry
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{reg: prometheus.NewRegistry()}
}

// Register adds a collector
func (r *Registry) Register(c prometheus.Collector) error {
	return r.reg.Register(c)
}

// MustRegister adds collectors, panicking on duplicates
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	r.reg.MustRegister(cs...)
}

// Handler returns the HTTP handler serving the registry's metrics
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying gatherer for tests
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Metrics holds all engine-level collectors
type Metrics struct {
	QueriesTotal    *prometheus.CounterVec
	QueryDuration   prometheus.Histogram
	EdgesExecuted   prometheus.Counter
	RecordsFetched  *prometheus.CounterVec
	RecordsPruned   prometheus.Counter
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	APICalls        *prometheus.CounterVec
	ResultsEmitted  prometheus.Histogram
	AssemblySeconds prometheus.Histogram
}

// NewMetrics creates all engine collectors
func NewMetrics() *Metrics {
	return &Metrics{
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "biograph",
				Subsystem: "engine",
				Name:      "queries_total",
				Help:      "Total number of TRAPI queries handled",
			},
			[]string{"status"},
		),
		QueryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "biograph",
				Subsystem: "engine",
				Name:      "query_duration_seconds",
				Help:      "End-to-end query handling duration",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
			},
		),
		EdgesExecuted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "biograph",
				Subsystem: "engine",
				Name:      "edges_executed_total",
				Help:      "Total number of execution edges dispatched",
			},
		),
		RecordsFetched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "biograph",
				Subsystem: "engine",
				Name:      "records_fetched_total",
				Help:      "Records returned by downstream APIs",
			},
			[]string{"api"},
		),
		RecordsPruned: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "biograph",
				Subsystem: "engine",
				Name:      "records_pruned_total",
				Help:      "Records removed by neighbor-consistency filtering",
			},
		),
		CacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "biograph",
				Subsystem: "cache",
				Name:      "hits_total",
				Help:      "Per-edge record cache hits",
			},
		),
		CacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "biograph",
				Subsystem: "cache",
				Name:      "misses_total",
				Help:      "Per-edge record cache misses",
			},
		),
		APICalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "biograph",
				Subsystem: "engine",
				Name:      "api_calls_total",
				Help:      "Downstream API sub-query outcomes",
			},
			[]string{"api", "status"},
		),
		ResultsEmitted: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "biograph",
				Subsystem: "engine",
				Name:      "results_emitted",
				Help:      "Results per query after consolidation",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
		AssemblySeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "biograph",
				Subsystem: "engine",
				Name:      "assembly_duration_seconds",
				Help:      "Results assembly duration",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
			},
		),
	}
}

// Register adds every collector to the registry
func (m *Metrics) Register(r *Registry) {
	r.MustRegister(
		m.QueriesTotal,
		m.QueryDuration,
		m.EdgesExecuted,
		m.RecordsFetched,
		m.RecordsPruned,
		m.CacheHits,
		m.CacheMisses,
		m.APICalls,
		m.ResultsEmitted,
		m.AssemblySeconds,
	)
}
