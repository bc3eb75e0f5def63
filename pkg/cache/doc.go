// Package cache provides a Redis-backed cache for Yelp API responses.
//
// Yelp search results change slowly and every search call counts against
// the daily quota, so 200 responses are kept for a configured TTL. Keys are
// built from the endpoint and sorted query params; search pages are also
// indexed by location so one ZIP code can be refreshed on its own.
//
// # Basic Usage
//
//	manager := cache.NewManager(redisClient, cache.WithTTL(6*time.Hour))
//
//	key := cache.SearchKey(yelp.SearchParams{Location: "94566", Limit: 50})
//
//	resp, err := manager.Lookup(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		resp, err = fetchFromYelp(ctx)
//		if err == nil {
//			_, err = manager.Store(ctx, key, resp)
//		}
//	}
//
//	// drop every cached page for one ZIP code
//	n, err := manager.InvalidateLocation(ctx, "94566")
//
// # Metrics
//
//   - yelp_cache_hits_total{layer="redis"}
//   - yelp_cache_misses_total
//   - yelp_cache_size_bytes{layer="redis"}
//   - yelp_cache_errors_total{operation}
//   - yelp_cache_invalidated_total
package cache
