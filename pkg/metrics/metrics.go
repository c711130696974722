// Package metrics defines the Prometheus collectors for the index pipeline
// and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the pipeline.
type Metrics struct {
	RecordsTotal        *prometheus.CounterVec
	OccurrencesTotal    prometheus.Counter
	PairsSkippedTotal   prometheus.Counter
	EntriesTotal        prometheus.Counter
	EntryIDsCount       prometheus.Histogram
	SpillRunsTotal      prometheus.Counter
	SinkWritesTotal     *prometheus.CounterVec
	StageDuration       *prometheus.HistogramVec
	OrderViolationTotal prometheus.Counter

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them on reg. A nil reg uses a
// private registry, which keeps tests and repeated runs independent.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		RecordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forum_index_records_total",
				Help: "Forum records read by the map stage, by status (ok, malformed).",
			},
			[]string{"status"},
		),
		OccurrencesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "forum_index_occurrences_total",
				Help: "Term occurrences emitted by the tokenizer.",
			},
		),
		PairsSkippedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "forum_index_pairs_skipped_total",
				Help: "Malformed reducer input lines skipped.",
			},
		),
		EntriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "forum_index_entries_total",
				Help: "Index entries emitted by the aggregator.",
			},
		),
		EntryIDsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "forum_index_entry_ids",
				Help:    "Distinct record ids per emitted index entry.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10),
			},
		),
		SpillRunsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "forum_index_spill_runs_total",
				Help: "Sorted runs spilled to disk by the external shuffle.",
			},
		),
		SinkWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forum_index_sink_writes_total",
				Help: "Sink batch writes by sink and status.",
			},
			[]string{"sink", "status"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "forum_index_stage_duration_seconds",
				Help:    "Wall time of each pipeline stage.",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
			},
			[]string{"stage"},
		),
		OrderViolationTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "forum_index_order_violations_total",
				Help: "Aggregator input terms that sorted before their predecessor.",
			},
		),
		gatherer: reg,
	}

	reg.MustRegister(
		m.RecordsTotal,
		m.OccurrencesTotal,
		m.PairsSkippedTotal,
		m.EntriesTotal,
		m.EntryIDsCount,
		m.SpillRunsTotal,
		m.SinkWritesTotal,
		m.StageDuration,
		m.OrderViolationTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler for these collectors.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
