package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/Sternrassler/zip-ingest/pkg/yelp"
)

const locationIndexPrefix = "yelp:index:location:"

// CacheKey identifies a cached Yelp response.
type CacheKey struct {
	// Endpoint is the API path (e.g., "/v3/businesses/search")
	Endpoint string

	// QueryParams are the request query parameters
	QueryParams url.Values
}

// String generates a deterministic cache key string.
// Format: yelp:endpoint:query1=val1:query2=val2
//
// Example:
//
//	yelp:v3/businesses/search:categories=restaurants:limit=50:location=94566
func (k CacheKey) String() string {
	parts := []string{"yelp"}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			values := append([]string(nil), k.QueryParams[key]...)
			sort.Strings(values)
			parts = append(parts, fmt.Sprintf("%s=%s", key, strings.Join(values, ",")))
		}
	}

	return strings.Join(parts, ":")
}

// SearchKey is the key of one business search page.
func SearchKey(params yelp.SearchParams) CacheKey {
	return CacheKey{Endpoint: yelp.SearchEndpoint, QueryParams: params.Values()}
}

// Location returns the searched location, or "" when the key has none.
func (k CacheKey) Location() string {
	return strings.TrimSpace(k.QueryParams.Get("location"))
}

// locationIndex is the Redis set listing every cached key for a location.
func locationIndex(location string) string {
	return locationIndexPrefix + strings.ToLower(strings.TrimSpace(location))
}
