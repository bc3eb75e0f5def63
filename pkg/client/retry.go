package client

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	yelpRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yelp_retries_total",
		Help: "Total number of Yelp request retries by error class",
	}, []string{"error_class"})

	yelpRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "yelp_retry_backoff_seconds",
		Help:    "Wait before a Yelp request retry by error class",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"error_class"})

	yelpRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yelp_retry_exhausted_total",
		Help: "Total number of Yelp requests that failed after all attempts by error class",
	}, []string{"error_class"})
)

// RetryPolicy bounds the attempts and waits for one error class.
type RetryPolicy struct {
	// MaxAttempts counts the first request.
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// Backoff is the un-jittered wait after the given failed attempt (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.InitialBackoff) * math.Pow(p.Multiplier, float64(attempt-1))
	if d > float64(p.MaxBackoff) || math.IsInf(d, 0) {
		return p.MaxBackoff
	}
	return time.Duration(d)
}

var defaultPolicy = RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Second, MaxBackoff: 30 * time.Second, Multiplier: 2}

// Per-second 429s clear quickly; network errors get the longest waits.
var classPolicies = map[ErrorClass]RetryPolicy{
	ErrorClassServer:    {MaxAttempts: 3, InitialBackoff: time.Second, MaxBackoff: 10 * time.Second, Multiplier: 2},
	ErrorClassRateLimit: {MaxAttempts: 4, InitialBackoff: 500 * time.Millisecond, MaxBackoff: 5 * time.Second, Multiplier: 2},
	ErrorClassNetwork:   {MaxAttempts: 3, InitialBackoff: 2 * time.Second, MaxBackoff: 30 * time.Second, Multiplier: 2},
}

// PolicyFor returns the default policy for an error class.
func PolicyFor(class ErrorClass) RetryPolicy {
	if p, ok := classPolicies[class]; ok {
		return p
	}
	return defaultPolicy
}

// retrier repeats a request while its failures are retriable.
type retrier struct {
	policy   func(ErrorClass) RetryPolicy
	classify func(error) ErrorClass
	logger   zerolog.Logger

	// sleep waits d or returns early with ctx's error.
	sleep func(ctx context.Context, d time.Duration) error
	// jitter spreads a wait; nil means ±20%.
	jitter func(time.Duration) time.Duration
}

func newRetrier(policy func(ErrorClass) RetryPolicy, logger zerolog.Logger) retrier {
	return retrier{
		policy:   policy,
		classify: classifyError,
		logger:   logger,
		sleep:    sleepCtx,
		jitter:   spread,
	}
}

// do calls fn until it succeeds, fails with a class that is not retried, or
// the class's attempts run out. A Retry-After hint on an *APIError raises the
// wait up to the policy's MaxBackoff.
func (r retrier) do(ctx context.Context, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				r.logger.Info().Int("attempt", attempt).Msg("Request succeeded after retry")
			}
			return nil
		}

		class := r.classify(err)
		if !shouldRetry(class) {
			return err
		}

		p := r.policy(class)
		if attempt >= p.MaxAttempts {
			yelpRetryExhaustedTotal.WithLabelValues(string(class)).Inc()
			r.logger.Warn().
				Str("error_class", string(class)).
				Int("max_attempts", p.MaxAttempts).
				Msg("Retry attempts exhausted")
			return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempt, err)
		}

		wait := r.jitter(p.Backoff(attempt))
		if hint := retryAfterOf(err); hint > wait {
			wait = min(hint, p.MaxBackoff)
		}
		yelpRetriesTotal.WithLabelValues(string(class)).Inc()
		yelpRetryBackoffSeconds.WithLabelValues(string(class)).Observe(wait.Seconds())

		r.logger.Debug().
			Str("error_class", string(class)).
			Int("attempt", attempt).
			Dur("wait", wait).
			Msg("Retrying Yelp request")

		if err := r.sleep(ctx, wait); err != nil {
			r.logger.Warn().
				Str("error_class", string(class)).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %v", ErrContextCancelled, err)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func spread(d time.Duration) time.Duration {
	return time.Duration(float64(d) * (0.8 + rand.Float64()*0.4))
}

// parseRetryAfter reads a Retry-After header in seconds or HTTP-date form.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}
