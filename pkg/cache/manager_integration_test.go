//go:build integration

package cache

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/Sternrassler/zip-ingest/internal/testutil"
	"github.com/Sternrassler/zip-ingest/pkg/yelp"
)

func pageKey(zip string, offset int) CacheKey {
	return SearchKey(yelp.SearchParams{
		Location:   zip,
		Categories: "restaurants",
		Limit:      50,
		Offset:     offset,
	})
}

func TestManager_Integration_StoreAndLookup(t *testing.T) {
	client := testutil.StartRedis(t)
	manager := NewManager(client, WithTTL(10*time.Minute))
	ctx := context.Background()

	key := pageKey("94566", 0)
	body := testutil.SearchBody("94566", 2, 2)

	entry, err := manager.Store(ctx, key, searchResponse(http.StatusOK, body))
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if entry.Location != "94566" {
		t.Errorf("entry Location = %q, want 94566", entry.Location)
	}

	ttl, err := client.TTL(ctx, key.String()).Result()
	if err != nil {
		t.Fatalf("redis ttl: %v", err)
	}
	if ttl <= 9*time.Minute || ttl > 10*time.Minute {
		t.Errorf("redis TTL = %v, want about 10m", ttl)
	}

	resp, err := manager.Lookup(ctx, key)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.Header.Get(HeaderCache) != "HIT" {
		t.Errorf("%s = %q, want HIT", HeaderCache, resp.Header.Get(HeaderCache))
	}
	if resp.Header.Get("Content-Type") != "application/json" {
		t.Errorf("headers not preserved: %v", resp.Header)
	}
	replayed, _ := io.ReadAll(resp.Body)
	if string(replayed) != body {
		t.Errorf("replayed body = %q, want %q", replayed, body)
	}
}

func TestManager_Integration_ErrorResponsesNotCached(t *testing.T) {
	manager := NewManager(testutil.StartRedis(t))
	ctx := context.Background()
	key := pageKey("10001", 0)

	if _, err := manager.Store(ctx, key, searchResponse(http.StatusInternalServerError, `{}`)); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if _, err := manager.Lookup(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected ErrCacheMiss for uncached 500, got %v", err)
	}
}

func TestManager_Integration_ExpiredByClock(t *testing.T) {
	now := time.Now()
	manager := NewManager(testutil.StartRedis(t), WithTTL(time.Hour), WithClock(func() time.Time { return now }))
	ctx := context.Background()
	key := pageKey("10002", 0)

	if _, err := manager.Store(ctx, key, searchResponse(http.StatusOK, `{"total": 0}`)); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	// Redis still holds the key, but the entry is past Expires.
	now = now.Add(2 * time.Hour)
	if _, err := manager.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected ErrCacheMiss for expired entry, got %v", err)
	}
}

func TestManager_Integration_InvalidateLocation(t *testing.T) {
	client := testutil.StartRedis(t)
	manager := NewManager(client)
	ctx := context.Background()

	for _, key := range []CacheKey{pageKey("94566", 0), pageKey("94566", 50), pageKey("94588", 0)} {
		if _, err := manager.Store(ctx, key, searchResponse(http.StatusOK, `{"total": 100}`)); err != nil {
			t.Fatalf("Store %s failed: %v", key, err)
		}
	}

	n, err := manager.InvalidateLocation(ctx, "94566")
	if err != nil {
		t.Fatalf("InvalidateLocation failed: %v", err)
	}
	if n != 2 {
		t.Errorf("removed = %d, want 2", n)
	}

	for _, key := range []CacheKey{pageKey("94566", 0), pageKey("94566", 50)} {
		if _, err := manager.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
			t.Errorf("%s still cached: %v", key, err)
		}
	}
	if _, err := manager.Get(ctx, pageKey("94588", 0)); err != nil {
		t.Errorf("other location dropped: %v", err)
	}
	if exists, _ := client.Exists(ctx, locationIndex("94566")).Result(); exists != 0 {
		t.Error("location index not removed")
	}

	n, err = manager.InvalidateLocation(ctx, "94566")
	if err != nil || n != 0 {
		t.Errorf("second InvalidateLocation = %d, %v, want 0, nil", n, err)
	}
}

func TestManager_Integration_DeleteUpdatesIndex(t *testing.T) {
	client := testutil.StartRedis(t)
	manager := NewManager(client)
	ctx := context.Background()
	key := pageKey("10003", 0)

	if _, err := manager.Store(ctx, key, searchResponse(http.StatusOK, `{}`)); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if err := manager.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	members, err := client.SMembers(ctx, locationIndex("10003")).Result()
	if err != nil {
		t.Fatalf("smembers: %v", err)
	}
	if len(members) != 0 {
		t.Errorf("index still lists %v", members)
	}
}

func TestManager_Integration_InvalidEntry(t *testing.T) {
	client := testutil.StartRedis(t)
	manager := NewManager(client)
	ctx := context.Background()
	key := pageKey("10004", 0)

	if err := client.Set(ctx, key.String(), "not json", time.Minute).Err(); err != nil {
		t.Fatalf("seed redis: %v", err)
	}

	if _, err := manager.Get(ctx, key); !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("expected ErrInvalidEntry, got %v", err)
	}
}
