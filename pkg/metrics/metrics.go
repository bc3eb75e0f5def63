// Package metrics documents the Prometheus metrics exported by zip-ingest.
// Metrics are defined with promauto in the packages that own them (ingest,
// client, cache, ratelimit) and served from the default registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by all packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the default gatherer matching Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the HTTP handler exposing all registered metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Ingestion Metrics (pkg/ingest):
//   - zip_ingest_search_calls_total (Counter): Search calls counted against the run budget
//   - zip_ingest_areas_total{status} (Counter): ZIP codes by final status
//     (succeeded, no_data, api_error, processing_error, skipped_limit)
//   - zip_ingest_records_total{result} (Counter): Records accepted, filtered, stored, store_failed
//   - zip_ingest_errors_total{kind} (Counter): Error entries by kind
//   - zip_ingest_run_duration_seconds (Histogram): Run wall time
//
// Quota Metrics (pkg/ratelimit):
//   - yelp_quota_remaining (Gauge): Requests left in the daily quota
//   - yelp_quota_blocks_total (Counter): Requests blocked at critical quota
//   - yelp_quota_throttles_total (Counter): Requests throttled at low quota
//
// Cache Metrics (pkg/cache):
//   - yelp_cache_hits_total{layer="redis"} (Counter)
//   - yelp_cache_misses_total (Counter)
//   - yelp_cache_size_bytes{layer="redis"} (Gauge)
//   - yelp_cache_errors_total{operation} (Counter)
//   - yelp_cache_invalidated_total (Counter)
//
// Request Metrics (pkg/client):
//   - yelp_requests_total{endpoint, status} (Counter)
//   - yelp_request_duration_seconds{endpoint} (Histogram)
//   - yelp_errors_total{class} (Counter): client, server, rate_limit, quota, network
//   - yelp_retries_total{error_class} (Counter)
//   - yelp_retry_backoff_seconds{error_class} (Histogram)
//   - yelp_retry_exhausted_total{error_class} (Counter)
//
// Example Prometheus Queries:
//
//   # Share of ZIP codes without data
//   sum(rate(zip_ingest_areas_total{status="no_data"}[1h])) / sum(rate(zip_ingest_areas_total[1h]))
//
//   # Records dropped by the ZIP filter
//   rate(zip_ingest_records_total{result="filtered"}[5m])
//
//   # Cache Hit Rate
//   sum(rate(yelp_cache_hits_total[5m])) /
//   (sum(rate(yelp_cache_hits_total[5m])) + sum(rate(yelp_cache_misses_total[5m])))
//
//   # Quota running low
//   yelp_quota_remaining < 100
