package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParsingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "klepto_parsing_seconds",
		Help:    "Time spent parsing a source file.",
		Buckets: prometheus.DefBuckets,
	}, []string{"language"})

	FilesScannedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "klepto_files_scanned_total",
		Help: "Total number of source files parsed into units.",
	})

	FilesSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "klepto_files_skipped_total",
		Help: "Total number of candidate files skipped during ingestion.",
	}, []string{"reason"})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "klepto_analysis_seconds",
		Help:    "Time spent in each analysis phase.",
		Buckets: prometheus.DefBuckets,
	}, []string{"phase"})

	FactsTotal = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "klepto_facts",
		Help: "Number of facts of each kind in the latest analysis.",
	}, []string{"kind"})

	FindingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "klepto_findings_total",
		Help: "Total number of findings emitted, by rule code.",
	}, []string{"code"})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "klepto_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	HistoryWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "klepto_history_writes_total",
		Help: "Snapshot history writes by outcome.",
	}, []string{"outcome"})
)
