package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss is returned when no fresh entry exists for a key.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry is returned when a stored value cannot be decoded.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Manager caches Yelp responses in Redis.
//
// Every cached search page is also added to a per-location index set, so the
// pages of one ZIP code can be dropped together with InvalidateLocation.
type Manager struct {
	redis *redis.Client
	ttl   time.Duration
	now   func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL sets how long stored responses stay fresh. Non-positive values keep DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithClock overrides the time source (for testing).
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a cache manager on top of redisClient.
func NewManager(redisClient *redis.Client, opts ...Option) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	m := &Manager{
		redis: redisClient,
		ttl:   DefaultTTL,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TTL is the freshness given to responses passed to Store.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Lookup returns the cached response for key, replayed with X-Cache: HIT.
func (m *Manager) Lookup(ctx context.Context, key CacheKey) (*http.Response, error) {
	entry, err := m.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return entry.Response(m.now()), nil
}

// Store caches a 200 response under key for the configured TTL.
// Other statuses are not cached and yield a nil entry.
func (m *Manager) Store(ctx context.Context, key CacheKey, resp *http.Response) (*CacheEntry, error) {
	if resp == nil || resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	entry, err := NewEntry(resp, m.now(), m.ttl)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return nil, err
	}
	entry.Location = key.Location()

	if err := m.Set(ctx, key, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Get returns the fresh entry stored under key, or ErrCacheMiss.
func (m *Manager) Get(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	data, err := m.redis.Get(ctx, key.String()).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	case err != nil:
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	// Redis may still hold a key briefly after Expires when clocks differ.
	if entry.ExpiredAt(m.now()) {
		_ = m.Delete(ctx, key)
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues("redis").Inc()
	CacheSize.WithLabelValues("redis").Set(float64(len(data)))
	return &entry, nil
}

// Set writes entry under key and indexes it by location.
// Entries that are already stale are skipped.
func (m *Manager) Set(ctx context.Context, key CacheKey, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	ttl := entry.RemainingAt(m.now())
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	pipe := m.redis.TxPipeline()
	pipe.Set(ctx, key.String(), data, ttl)
	if loc := key.Location(); loc != "" {
		index := locationIndex(loc)
		pipe.SAdd(ctx, index, key.String())
		pipe.Expire(ctx, index, max(ttl, m.ttl))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	CacheSize.WithLabelValues("redis").Set(float64(len(data)))
	return nil
}

// Delete removes one entry and its index membership.
func (m *Manager) Delete(ctx context.Context, key CacheKey) error {
	pipe := m.redis.TxPipeline()
	pipe.Del(ctx, key.String())
	if loc := key.Location(); loc != "" {
		pipe.SRem(ctx, locationIndex(loc), key.String())
	}
	if _, err := pipe.Exec(ctx); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// InvalidateLocation drops every cached search page for location and
// returns the number of entries removed.
func (m *Manager) InvalidateLocation(ctx context.Context, location string) (int, error) {
	index := locationIndex(location)

	keys, err := m.redis.SMembers(ctx, index).Result()
	if err != nil {
		CacheErrors.WithLabelValues("invalidate").Inc()
		return 0, fmt.Errorf("redis smembers %s: %w", index, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	pipe := m.redis.TxPipeline()
	removed := pipe.Del(ctx, keys...)
	pipe.Del(ctx, index)
	if _, err := pipe.Exec(ctx); err != nil {
		CacheErrors.WithLabelValues("invalidate").Inc()
		return 0, fmt.Errorf("redis del: %w", err)
	}

	n := int(removed.Val())
	CacheInvalidations.Add(float64(n))
	return n, nil
}
