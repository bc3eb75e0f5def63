// Package ratelimit tracks the Yelp daily request quota and gates requests.
// It reads the RateLimit-DailyLimit, RateLimit-Remaining and RateLimit-ResetTime
// response headers and keeps the latest state in Redis so that every process
// sharing an API key sees the same budget.
package ratelimit

import (
	"time"
)

// Redis keys for quota state storage.
const (
	RedisKeyDailyLimit     = "yelp:quota:daily_limit"
	RedisKeyRemaining      = "yelp:quota:remaining"
	RedisKeyResetTimestamp = "yelp:quota:reset_timestamp"
	RedisKeyLastUpdate     = "yelp:quota:last_update"
)

// Response headers carrying quota information.
const (
	HeaderDailyLimit = "RateLimit-DailyLimit"
	HeaderRemaining  = "RateLimit-Remaining"
	HeaderResetTime  = "RateLimit-ResetTime"
)

// Thresholds for quota decisions.
const (
	// QuotaThresholdCritical blocks all requests when remaining quota falls below this value.
	QuotaThresholdCritical = 5

	// QuotaThresholdWarning applies throttling when remaining quota falls below this value.
	QuotaThresholdWarning = 20

	// QuotaThresholdHealthy indicates normal operation.
	QuotaThresholdHealthy = 50
)

// DefaultDailyLimit is assumed until the first response reports the real limit.
const DefaultDailyLimit = 5000

// QuotaState is the current daily quota state, shared across processes via Redis.
type QuotaState struct {
	// DailyLimit from the RateLimit-DailyLimit header.
	DailyLimit int `json:"daily_limit"`

	// Remaining requests in the current window, from RateLimit-Remaining.
	Remaining int `json:"remaining"`

	// ResetAt is when the daily window resets, from RateLimit-ResetTime.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when this state was last written.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when Remaining >= QuotaThresholdHealthy.
	IsHealthy bool `json:"is_healthy"`
}

// IsStale returns true if the state data is older than the given duration.
func (s *QuotaState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsCriticalBlock returns true if requests should be blocked.
// A block lifts once the reset time has passed.
func (s *QuotaState) NeedsCriticalBlock() bool {
	return s.Remaining < QuotaThresholdCritical && s.TimeUntilReset() > 0
}

// NeedsThrottling returns true if requests should be throttled.
func (s *QuotaState) NeedsThrottling() bool {
	return s.Remaining < QuotaThresholdWarning && s.Remaining >= QuotaThresholdCritical
}

// TimeUntilReset returns the duration until the quota resets, or 0 if it has passed.
func (s *QuotaState) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// UpdateHealth updates the IsHealthy field based on current Remaining.
func (s *QuotaState) UpdateHealth() {
	s.IsHealthy = s.Remaining >= QuotaThresholdHealthy
}
