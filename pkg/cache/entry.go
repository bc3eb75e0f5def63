package cache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// DefaultTTL is how long a search page stays fresh unless configured otherwise.
const DefaultTTL = 24 * time.Hour

// HeaderCache is set to "HIT" on responses replayed from the cache.
const HeaderCache = "X-Cache"

// CacheEntry is one stored Yelp response.
type CacheEntry struct {
	Data       []byte      `json:"data"`
	StatusCode int         `json:"status_code"`
	Headers    http.Header `json:"headers"`

	// Location is the searched location, empty for non-search requests.
	Location string `json:"location,omitempty"`

	CachedAt time.Time `json:"cached_at"`
	Expires  time.Time `json:"expires"`
}

// NewEntry reads resp into an entry that stays fresh for ttl from now.
// The body is restored so the caller can still decode it.
func NewEntry(resp *http.Response, now time.Time, ttl time.Duration) (*CacheEntry, error) {
	if resp == nil {
		return nil, fmt.Errorf("response cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	return &CacheEntry{
		Data:       body,
		StatusCode: resp.StatusCode,
		Headers:    resp.Header.Clone(),
		CachedAt:   now,
		Expires:    now.Add(ttl),
	}, nil
}

// ExpiredAt reports whether the entry is stale at now.
func (e *CacheEntry) ExpiredAt(now time.Time) bool {
	return !now.Before(e.Expires)
}

// RemainingAt is the freshness left at now, never negative.
func (e *CacheEntry) RemainingAt(now time.Time) time.Duration {
	if d := e.Expires.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Response replays the entry as an HTTP response with X-Cache and Age set.
// The entry itself is not modified.
func (e *CacheEntry) Response(now time.Time) *http.Response {
	header := e.Headers.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set(HeaderCache, "HIT")

	age := now.Sub(e.CachedAt)
	if age < 0 {
		age = 0
	}
	header.Set("Age", strconv.Itoa(int(age.Seconds())))

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode)),
		StatusCode:    e.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(e.Data)),
		ContentLength: int64(len(e.Data)),
	}
}
