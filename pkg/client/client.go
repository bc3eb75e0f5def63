// Package client provides the Yelp Fusion HTTP client with request pacing,
// daily quota tracking, response caching and retries.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/zip-ingest/pkg/cache"
	"github.com/Sternrassler/zip-ingest/pkg/ratelimit"
	"github.com/Sternrassler/zip-ingest/pkg/yelp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Prometheus metrics for Yelp client operations.
var (
	yelpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yelp_requests_total",
		Help: "Total Yelp requests by endpoint and status",
	}, []string{"endpoint", "status"})

	yelpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "yelp_request_duration_seconds",
		Help:    "Yelp request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	yelpErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yelp_errors_total",
		Help: "Total Yelp errors by class",
	}, []string{"class"})
)

// DefaultBaseURL is the Yelp Fusion API host.
const DefaultBaseURL = "https://api.yelp.com"

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 per-second rate limit errors.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassQuota represents 429 responses for an exhausted daily quota.
	ErrorClassQuota ErrorClass = "quota"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// Client is the Yelp Fusion API client.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	limiter    *rate.Limiter
	quota      *ratelimit.Tracker
	cache      *cache.Manager
	retry      retrier
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// APIKey is sent as a Bearer token (REQUIRED).
	APIKey string

	// BaseURL of the API, DefaultBaseURL when empty.
	BaseURL string

	// User-Agent header (REQUIRED).
	UserAgent string

	// Redis client for caching and quota state. Optional: without it
	// responses are not cached and the daily quota is not tracked.
	Redis *redis.Client

	// Request pacing
	RateLimit float64 // Requests per second, 0 disables pacing
	Burst     int

	// Caching
	CacheTTL time.Duration // TTL of cached search responses, <0 disables caching

	// Retry
	MaxRetries     int           // Retries after the first attempt
	InitialBackoff time.Duration // Overrides the per-class initial backoff when > 0

	// Timeout per HTTP attempt.
	Timeout time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(apiKey, userAgent string) Config {
	return Config{
		APIKey:     apiKey,
		BaseURL:    DefaultBaseURL,
		UserAgent:  userAgent,
		RateLimit:  5,
		Burst:      1,
		CacheTTL:   cache.DefaultTTL,
		MaxRetries: 2,
		Timeout:    30 * time.Second,
	}
}

// New creates a new Yelp client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil || baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	if cfg.RateLimit < 0 {
		return nil, fmt.Errorf("rate_limit must be >= 0 (got %v)", cfg.RateLimit)
	}

	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.MaxRetries)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	logger := log.With().Str("component", "yelp-client").Logger()

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: baseURL,
		config:  cfg,
		logger:  logger,
	}
	c.retry = newRetrier(c.retryPolicy, logger)

	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	if cfg.Redis != nil {
		c.quota = ratelimit.NewTracker(cfg.Redis, logger)
		if cfg.CacheTTL >= 0 {
			c.cache = cache.NewManager(cfg.Redis, cache.WithTTL(cfg.CacheTTL))
		}
	}

	return c, nil
}

// Do performs an HTTP request with pacing, quota gating, caching and retries.
// Non-2xx responses are returned as *APIError.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := req.URL.Path

	startTime := time.Now()
	defer func() {
		yelpRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	// Step 1: Check cache (cached responses cost no quota)
	cacheKey := cache.CacheKey{
		Endpoint:    endpoint,
		QueryParams: req.URL.Query(),
	}
	if c.cache != nil && req.Method == http.MethodGet {
		cached, err := c.cache.Lookup(ctx, cacheKey)
		switch {
		case err == nil:
			c.logger.Debug().Str("endpoint", endpoint).Msg("Serving response from cache")
			yelpRequestsTotal.WithLabelValues(endpoint, "cache_hit").Inc()
			return cached, nil
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
	}

	// Step 2: Check daily quota
	if c.quota != nil {
		allowed, err := c.quota.ShouldAllowRequest(ctx)
		if err != nil {
			c.logger.Error().Err(err).Msg("Quota check failed")
			return nil, fmt.Errorf("quota check: %w", err)
		}
		if !allowed {
			c.logger.Warn().
				Str("endpoint", endpoint).
				Msg("Request blocked by quota tracker")
			yelpRequestsTotal.WithLabelValues(endpoint, "quota_blocked").Inc()
			return nil, fmt.Errorf("request blocked: %w", ratelimit.ErrQuotaExhausted)
		}
	}

	// Step 3: Set headers
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Str("query", req.URL.RawQuery).
		Msg("Executing Yelp request")

	// Step 4: Execute with retries
	var resp *http.Response
	retryErr := c.retry.do(ctx, func() error {
		var err error
		resp, err = c.attempt(req.Clone(ctx), endpoint)
		return err
	})
	if retryErr != nil {
		return nil, retryErr
	}

	// Step 5: Update cache on success
	if c.cache != nil && req.Method == http.MethodGet {
		entry, err := c.cache.Store(ctx, cacheKey, resp)
		switch {
		case err != nil:
			c.logger.Warn().Err(err).Msg("Failed to cache response")
		case entry != nil:
			c.logger.Debug().
				Str("endpoint", endpoint).
				Str("location", entry.Location).
				Time("expires", entry.Expires).
				Msg("Cached response")
		}
	}

	return resp, nil
}

// attempt executes a single HTTP round trip and converts error statuses into *APIError.
func (c *Client) attempt(req *http.Request, endpoint string) (*http.Response, error) {
	ctx := req.Context()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		yelpErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		yelpRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, err
	}

	if c.quota != nil {
		if err := c.quota.UpdateFromHeaders(ctx, resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update quota from headers")
		}
	}

	yelpRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 400 {
		return resp, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()

	apiErr := newAPIError(resp.StatusCode, body)
	apiErr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	yelpErrorsTotal.WithLabelValues(string(apiErr.ErrorClass)).Inc()

	c.logger.Warn().
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Str("code", apiErr.Code).
		Str("error_class", string(apiErr.ErrorClass)).
		Msg("Yelp request error")

	if apiErr.ErrorClass == ErrorClassQuota && c.quota != nil {
		if err := c.quota.MarkExhausted(ctx, nextUTCMidnight(time.Now())); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to record exhausted quota")
		}
	}

	return nil, apiErr
}

// retryPolicy applies the configured retry overrides to the per-class defaults.
func (c *Client) retryPolicy(class ErrorClass) RetryPolicy {
	rc := PolicyFor(class)
	rc.MaxAttempts = c.config.MaxRetries + 1
	if c.config.InitialBackoff > 0 {
		rc.InitialBackoff = c.config.InitialBackoff
		if rc.MaxBackoff < rc.InitialBackoff {
			rc.MaxBackoff = rc.InitialBackoff
		}
	}
	return rc
}

// Get performs a GET request to a Yelp API path with the given query.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	u := c.baseURL.JoinPath(path)
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	return c.Do(req)
}

// SearchRaw runs a business search and returns the raw JSON body.
func (c *Client) SearchRaw(ctx context.Context, params yelp.SearchParams) ([]byte, error) {
	if strings.TrimSpace(params.Location) == "" {
		return nil, fmt.Errorf("search location is required")
	}

	resp, err := c.Get(ctx, yelp.SearchEndpoint, params.Values())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}
	return body, nil
}

// Search runs a business search and decodes one page of results.
func (c *Client) Search(ctx context.Context, params yelp.SearchParams) (*yelp.SearchResponse, error) {
	body, err := c.SearchRaw(ctx, params)
	if err != nil {
		return nil, err
	}

	var page yelp.SearchResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return &page, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// GetCache returns the cache manager, nil without Redis.
func (c *Client) GetCache() *cache.Manager {
	return c.cache
}

func nextUTCMidnight(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}
