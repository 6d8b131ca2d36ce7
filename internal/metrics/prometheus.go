// Package metrics provides Prometheus metrics for parts-list imports.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ImportsTotal counts finished import runs by kind and status
	// (ok, aborted, failed).
	ImportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plm_import_runs_total",
			Help: "Total number of import runs",
		},
		[]string{"kind", "status"},
	)

	ImportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "plm_import_duration_seconds",
			Help:    "Time taken by an import run",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"kind"},
	)

	// RowsTotal counts row outcomes (created, duplicate, skipped, failed).
	RowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plm_import_rows_total",
			Help: "Total number of file rows processed by outcome",
		},
		[]string{"kind", "outcome"},
	)

	ImportsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "plm_imports_active",
			Help: "Number of imports currently running",
		},
	)

	AttachmentBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plm_attachment_bytes_total",
			Help: "Total bytes stored or read from the attachment store",
		},
		[]string{"backend", "direction"},
	)

	CatalogCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plm_catalog_cache_total",
			Help: "Catalog lookup cache hits and misses",
		},
		[]string{"lookup", "result"},
	)

	// HTTPRequestsTotal is labelled by chi route pattern, not raw path, so
	// request ids do not blow up cardinality.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plm_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "plm_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// RecordImport records a finished run.
func RecordImport(kind, status string, duration time.Duration) {
	ImportsTotal.WithLabelValues(kind, status).Inc()
	ImportDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordRows adds n rows with the given outcome.
func RecordRows(kind, outcome string, n int) {
	if n <= 0 {
		return
	}
	RowsTotal.WithLabelValues(kind, outcome).Add(float64(n))
}

// RecordAttachment records bytes moved through an attachment backend.
func RecordAttachment(backend, direction string, n int) {
	AttachmentBytes.WithLabelValues(backend, direction).Add(float64(n))
}

// RecordCache records a catalog cache lookup.
func RecordCache(lookup string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CatalogCacheTotal.WithLabelValues(lookup, result).Inc()
}

// RecordHTTP records one served request.
func RecordHTTP(method, route string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
