// Package metrics exposes Prometheus counters, gauges, and histograms for
// the staging, history, and derive pipelines, following the teacher's
// promauto-registered package-level vectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// FilesDiscovered counts files found by the staging coordinator's walk.
	FilesDiscovered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chipstage_files_discovered_total",
		Help: "Total number of raw files discovered under the raw root",
	})

	// EventsTotal counts terminal ingestion events by status.
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chipstage_events_total",
			Help: "Total number of ingestion events by terminal status",
		},
		[]string{"status"},
	)

	// IngestDuration times one file's full parse→commit state machine.
	IngestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chipstage_ingest_duration_seconds",
		Help:    "Time spent ingesting a single file end to end",
		Buckets: prometheus.DefBuckets,
	})

	// WorkerPoolActive reports the current number of busy staging workers.
	WorkerPoolActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chipstage_worker_pool_active",
		Help: "Current number of busy staging workers",
	})

	// ValidationIssues counts validation warnings/errors by kind.
	ValidationIssues = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chipstage_validation_issues_total",
			Help: "Total number of validation warnings and errors",
		},
		[]string{"kind"},
	)

	// HistoryChipsBuilt counts per-chip history artifacts written.
	HistoryChipsBuilt = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chipstage_history_chips_built_total",
		Help: "Total number of chip history artifacts written",
	})

	// ExtractorResults counts emitted/dropped extractor results by extractor
	// name and outcome.
	ExtractorResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chipstage_extractor_results_total",
			Help: "Total number of extractor results by extractor and outcome",
		},
		[]string{"extractor", "outcome"},
	)

	// ExtractorDuration times one extractor invocation.
	ExtractorDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chipstage_extractor_duration_seconds",
			Help:    "Time spent in a single extractor invocation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"extractor"},
	)
)

// Handler returns the Prometheus scrape endpoint handler, mirroring the
// teacher's promhttp-backed metrics server.
func Handler() http.Handler {
	return promhttp.Handler()
}
