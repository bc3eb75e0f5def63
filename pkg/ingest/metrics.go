package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for ingestion runs.
var (
	searchCallsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zip_ingest_search_calls_total",
		Help: "Total search calls made by the ingestor",
	})

	areasTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zip_ingest_areas_total",
		Help: "Total ZIP codes processed by final status",
	}, []string{"status"})

	recordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zip_ingest_records_total",
		Help: "Total business records seen by result (accepted, filtered, stored, store_failed)",
	}, []string{"result"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zip_ingest_errors_total",
		Help: "Total error entries recorded by kind",
	}, []string{"kind"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "zip_ingest_run_duration_seconds",
		Help:    "Duration of ingestion runs in seconds",
		Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
	})
)
