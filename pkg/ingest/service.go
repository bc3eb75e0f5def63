package ingest

import (
	"context"

	"github.com/Sternrassler/zip-ingest/pkg/yelp"
)

// Searcher runs one business search call and returns one page of results.
// Any returned error is treated as an opaque call failure.
type Searcher interface {
	Search(ctx context.Context, params yelp.SearchParams) (*yelp.SearchResponse, error)
}

// Store persists a normalized restaurant.
// Any returned error is treated as an opaque storage failure.
type Store interface {
	StoreRestaurant(ctx context.Context, r Restaurant) error
}

// Service is the external boundary the Ingestor depends on.
type Service interface {
	Searcher
	Store
}
