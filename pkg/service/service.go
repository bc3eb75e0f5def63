// Package service assembles the ingest.Service implementations used by the CLI.
package service

import (
	"context"

	"github.com/Sternrassler/zip-ingest/pkg/ingest"
	"github.com/Sternrassler/zip-ingest/pkg/store"
	"github.com/Sternrassler/zip-ingest/pkg/yelp"
	"github.com/rs/zerolog"
)

// Stub searches nothing and stores nothing. Every search returns an empty
// page and every record is logged by a LogStore.
type Stub struct {
	*store.LogStore
	logger zerolog.Logger
}

// NewStub creates a Stub logging to logger.
func NewStub(logger zerolog.Logger) *Stub {
	return &Stub{
		LogStore: store.NewLogStore(logger),
		logger:   logger.With().Str("component", "stub-search").Logger(),
	}
}

// Search logs the request and returns an empty page.
func (s *Stub) Search(ctx context.Context, params yelp.SearchParams) (*yelp.SearchResponse, error) {
	s.logger.Info().
		Str("location", params.Location).
		Str("categories", params.Categories).
		Int("radius", params.Radius).
		Int("limit", params.Limit).
		Int("offset", params.Offset).
		Msg("Searching")
	return &yelp.SearchResponse{Businesses: []yelp.Business{}}, nil
}

// Live pairs a real Searcher with a Store.
type Live struct {
	ingest.Searcher
	ingest.Store
}

// NewLive composes searcher and st into an ingest.Service.
func NewLive(searcher ingest.Searcher, st ingest.Store) *Live {
	return &Live{Searcher: searcher, Store: st}
}

var (
	_ ingest.Service = (*Stub)(nil)
	_ ingest.Service = (*Live)(nil)
)
