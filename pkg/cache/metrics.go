package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by layer (redis)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yelp_cache_hits_total",
			Help: "Total number of Yelp response cache hits",
		},
		[]string{"layer"},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "yelp_cache_misses_total",
			Help: "Total number of Yelp response cache misses",
		},
	)

	// CacheSize tracks bytes written to and read from the cache by layer
	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "yelp_cache_size_bytes",
			Help: "Size of the last cached Yelp response in bytes",
		},
		[]string{"layer"},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yelp_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete", "invalidate"
	)

	CacheInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "yelp_cache_invalidated_total",
			Help: "Total number of cached search pages dropped by location",
		},
	)
)
