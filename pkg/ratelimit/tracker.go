package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrQuotaExhausted is returned when the daily quota is below the critical threshold.
var ErrQuotaExhausted = errors.New("daily quota exhausted")

// Prometheus metrics for quota tracking.
var (
	yelpQuotaRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "yelp_quota_remaining",
		Help: "Requests remaining in the current Yelp daily quota window",
	})

	yelpQuotaBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "yelp_quota_blocks_total",
		Help: "Total number of requests blocked due to critical quota",
	})

	yelpQuotaThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "yelp_quota_throttles_total",
		Help: "Total number of requests throttled due to low quota",
	})
)

// DefaultThrottleDelay is the pause applied to each request in the warning state.
const DefaultThrottleDelay = time.Second

// Tracker monitors the Yelp daily quota and gates requests.
type Tracker struct {
	redis         *redis.Client
	logger        zerolog.Logger
	throttleDelay time.Duration
}

// NewTracker creates a new quota tracker.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:         redisClient,
		logger:        logger,
		throttleDelay: DefaultThrottleDelay,
	}
}

// SetThrottleDelay overrides the warning-state pause (for testing).
func (t *Tracker) SetThrottleDelay(d time.Duration) {
	t.throttleDelay = d
}

// GetState retrieves the current quota state from Redis.
// Returns a default healthy state if no data exists in Redis.
func (t *Tracker) GetState(ctx context.Context) (*QuotaState, error) {
	values, err := t.redis.MGet(ctx, RedisKeyDailyLimit, RedisKeyRemaining, RedisKeyResetTimestamp, RedisKeyLastUpdate).Result()
	if err != nil {
		return nil, fmt.Errorf("get quota state: %w", err)
	}

	if values[1] == nil {
		t.logger.Debug().Msg("No quota state in Redis, returning default healthy state")
		state := &QuotaState{
			DailyLimit: DefaultDailyLimit,
			Remaining:  DefaultDailyLimit,
			ResetAt:    time.Now().Add(24 * time.Hour),
			LastUpdate: time.Now(),
		}
		state.UpdateHealth()
		return state, nil
	}

	dailyLimit, err := redisInt(values[0])
	if err != nil {
		return nil, fmt.Errorf("parse daily limit: %w", err)
	}
	remaining, err := redisInt(values[1])
	if err != nil {
		return nil, fmt.Errorf("parse remaining: %w", err)
	}
	resetTimestamp, err := redisInt(values[2])
	if err != nil {
		return nil, fmt.Errorf("parse reset timestamp: %w", err)
	}

	var lastUpdate time.Time
	if s, ok := values[3].(string); ok && s != "" {
		if err := json.Unmarshal([]byte(s), &lastUpdate); err != nil {
			return nil, fmt.Errorf("parse last update: %w", err)
		}
	}

	state := &QuotaState{
		DailyLimit: dailyLimit,
		Remaining:  remaining,
		ResetAt:    time.Unix(int64(resetTimestamp), 0),
		LastUpdate: lastUpdate,
	}
	state.UpdateHealth()

	return state, nil
}

// UpdateFromHeaders parses Yelp quota headers and updates Redis state.
// Responses without quota headers are ignored.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	state, ok, err := parseQuotaHeaders(headers, time.Now())
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return t.store(ctx, state)
}

// MarkExhausted records an exhausted quota until resetAt, used when the API
// answers with a daily-limit error instead of quota headers.
func (t *Tracker) MarkExhausted(ctx context.Context, resetAt time.Time) error {
	state, err := t.GetState(ctx)
	if err != nil {
		return err
	}
	state.Remaining = 0
	state.ResetAt = resetAt
	state.LastUpdate = time.Now()
	state.UpdateHealth()
	return t.store(ctx, state)
}

func (t *Tracker) store(ctx context.Context, state *QuotaState) error {
	lastUpdateJSON, err := json.Marshal(state.LastUpdate)
	if err != nil {
		return fmt.Errorf("marshal last update: %w", err)
	}

	// Keys expire with the quota window so a stale block cannot outlive it.
	ttl := state.TimeUntilReset() + time.Minute

	pipe := t.redis.TxPipeline()
	pipe.Set(ctx, RedisKeyDailyLimit, state.DailyLimit, ttl)
	pipe.Set(ctx, RedisKeyRemaining, state.Remaining, ttl)
	pipe.Set(ctx, RedisKeyResetTimestamp, state.ResetAt.Unix(), ttl)
	pipe.Set(ctx, RedisKeyLastUpdate, lastUpdateJSON, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store quota state in redis: %w", err)
	}

	yelpQuotaRemaining.Set(float64(state.Remaining))

	switch {
	case state.NeedsCriticalBlock():
		t.logger.Error().
			Int("remaining", state.Remaining).
			Time("reset_at", state.ResetAt).
			Msg("Yelp daily quota CRITICAL - requests will be blocked")
	case state.NeedsThrottling():
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Time("reset_at", state.ResetAt).
			Msg("Yelp daily quota WARNING - requests will be throttled")
	default:
		t.logger.Debug().
			Int("remaining", state.Remaining).
			Int("daily_limit", state.DailyLimit).
			Bool("is_healthy", state.IsHealthy).
			Msg("Yelp quota state updated")
	}

	return nil
}

// ShouldAllowRequest checks if a request should be allowed based on the quota state.
// Returns false if the request should be blocked. In the warning state it
// pauses for the throttle delay before allowing the request.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get quota state: %w", err)
	}

	if state.NeedsCriticalBlock() {
		t.logger.Error().
			Int("remaining", state.Remaining).
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("Yelp daily quota critical - blocking request")
		yelpQuotaBlocksTotal.Inc()
		return false, nil
	}

	if state.NeedsThrottling() {
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Msg("Yelp daily quota low - throttling request")
		yelpQuotaThrottlesTotal.Inc()

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(t.throttleDelay):
		}
	}

	return true, nil
}

// parseQuotaHeaders builds a QuotaState from response headers.
// ok is false when the response carries no quota headers.
func parseQuotaHeaders(headers http.Header, now time.Time) (state *QuotaState, ok bool, err error) {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil, false, nil
	}

	remaining, err := strconv.Atoi(remainStr)
	if err != nil {
		return nil, false, fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	dailyLimit := DefaultDailyLimit
	if limitStr := headers.Get(HeaderDailyLimit); limitStr != "" {
		dailyLimit, err = strconv.Atoi(limitStr)
		if err != nil {
			return nil, false, fmt.Errorf("parse %s header: %w", HeaderDailyLimit, err)
		}
	}

	resetAt, err := parseResetTime(headers.Get(HeaderResetTime), now)
	if err != nil {
		return nil, false, err
	}

	state = &QuotaState{
		DailyLimit: dailyLimit,
		Remaining:  remaining,
		ResetAt:    resetAt,
		LastUpdate: now,
	}
	state.UpdateHealth()
	return state, true, nil
}

// parseResetTime accepts an RFC 3339 timestamp or a number of seconds until reset.
// A missing value means the next UTC midnight.
func parseResetTime(value string, now time.Time) (time.Time, error) {
	if value == "" {
		y, m, d := now.UTC().Date()
		return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC), nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, nil
	}
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s header: invalid value %q", HeaderResetTime, value)
	}
	return now.Add(time.Duration(seconds) * time.Second), nil
}

func redisInt(v any) (int, error) {
	switch val := v.(type) {
	case nil:
		return 0, nil
	case string:
		return strconv.Atoi(val)
	default:
		return 0, fmt.Errorf("unexpected redis value type %T", v)
	}
}
