// Package metrics defines the Prometheus metrics exported by maillog.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingestion metrics
var (
	LinesProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maillog_lines_processed_total",
			Help: "Total number of ingested log lines by classification result",
		},
		[]string{"result"}, // message, log_entry, skipped, parse_error
	)

	DuplicateMessagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "maillog_duplicate_messages_total",
			Help: "Total number of message inserts suppressed as duplicates",
		},
	)

	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "maillog_ingest_duration_seconds",
			Help:    "Duration of whole-file ingestion runs in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Database performance metrics
var (
	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maillog_db_queries_total",
			Help: "Total number of database queries executed",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "maillog_db_query_duration_seconds",
			Help:    "Duration of database queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

// HTTP API metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maillog_http_requests_total",
			Help: "Total number of HTTP requests handled",
		},
		[]string{"endpoint", "method", "status"},
	)

	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "maillog_search_duration_seconds",
			Help:    "Duration of address searches in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	SearchResultsReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "maillog_search_results_returned",
			Help:    "Number of rows returned per search",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 200},
		},
	)
)
