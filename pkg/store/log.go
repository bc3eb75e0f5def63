package store

import (
	"context"
	"sync/atomic"

	"github.com/Sternrassler/zip-ingest/pkg/ingest"
	"github.com/rs/zerolog"
)

// LogStore logs each record instead of persisting it.
type LogStore struct {
	logger zerolog.Logger
	count  atomic.Int64
}

// NewLogStore creates a LogStore writing to logger.
func NewLogStore(logger zerolog.Logger) *LogStore {
	return &LogStore{logger: logger.With().Str("component", "store").Logger()}
}

// StoreRestaurant logs the record and never fails.
func (s *LogStore) StoreRestaurant(ctx context.Context, r ingest.Restaurant) error {
	s.count.Add(1)
	s.logger.Info().
		Str("yelp_id", r.YelpID).
		Str("restaurant", r.Name).
		Str("zip_code", r.ZipCode).
		Strs("categories", r.Categories).
		Msg("Would store restaurant")
	return nil
}

// Count returns the number of records seen.
func (s *LogStore) Count() int {
	return int(s.count.Load())
}
