// Package obsmetrics exposes this process's Prometheus metrics: counters
// and histograms registered once at import time via promauto, read by
// cmd/corelake's /metrics endpoint (github.com/prometheus/client_golang's
// promhttp.Handler), and incremented from the ingest and query paths as
// batches and queries pass through them.
package obsmetrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// IngestRecordsTotal counts records durably appended to a partition's
	// write-ahead segment, by tenant and stream.
	IngestRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "corelake_ingest_records_total",
		Help: "Total records accepted into a write-ahead segment.",
	}, []string{"tenant", "stream"})

	// IngestRejectedTotal counts records or batches rejected before they
	// reached a segment, by reason (admission, horizon).
	IngestRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "corelake_ingest_rejected_total",
		Help: "Total records rejected by the ingest coordinator, by reason.",
	}, []string{"reason"})

	// RollsTotal counts partition rolls triggered, by tenant and stream.
	RollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "corelake_rolls_total",
		Help: "Total write-ahead segment rolls triggered.",
	}, []string{"tenant", "stream"})

	// QueryDurationSeconds observes end-to-end Coordinator.Execute latency.
	QueryDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "corelake_query_duration_seconds",
		Help:    "Wall-clock duration of a query coordinator Execute call.",
		Buckets: prometheus.DefBuckets,
	})

	// QueryFilesScanned observes how many files a query's partitions
	// decoded (ScanStats.QuerierFiles); files skipped by the sidecar index
	// or missing from the store are not counted.
	QueryFilesScanned = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "corelake_query_files_scanned",
		Help:    "Number of files a query's partitions touched.",
		Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64, 128, 256},
	})

	// CatalogTombstonesSweptTotal counts files physically removed by the
	// retention sweep once their grace period elapsed.
	CatalogTombstonesSweptTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "corelake_catalog_tombstones_swept_total",
		Help: "Total tombstoned files physically removed by the retention sweep.",
	})
)

// Handler returns the HTTP handler cmd/corelake mounts at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
