package ratelimit

import (
	"testing"
	"time"
)

func TestQuotaState_IsStale(t *testing.T) {
	tests := []struct {
		name     string
		state    *QuotaState
		maxAge   time.Duration
		expected bool
	}{
		{name: "fresh state", state: &QuotaState{LastUpdate: time.Now()}, maxAge: 5 * time.Minute, expected: false},
		{name: "stale state", state: &QuotaState{LastUpdate: time.Now().Add(-10 * time.Minute)}, maxAge: 5 * time.Minute, expected: true},
		{name: "just under max age", state: &QuotaState{LastUpdate: time.Now().Add(-4 * time.Minute)}, maxAge: 5 * time.Minute, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := tt.state.IsStale(tt.maxAge); result != tt.expected {
				t.Errorf("IsStale() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestQuotaState_NeedsCriticalBlock(t *testing.T) {
	future := time.Now().Add(time.Hour)
	past := time.Now().Add(-time.Hour)

	tests := []struct {
		name      string
		remaining int
		resetAt   time.Time
		expected  bool
	}{
		{name: "well above critical threshold", remaining: 50, resetAt: future, expected: false},
		{name: "at critical threshold", remaining: QuotaThresholdCritical, resetAt: future, expected: false},
		{name: "just below critical threshold", remaining: QuotaThresholdCritical - 1, resetAt: future, expected: true},
		{name: "zero remaining", remaining: 0, resetAt: future, expected: true},
		{name: "zero remaining after reset", remaining: 0, resetAt: past, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &QuotaState{Remaining: tt.remaining, ResetAt: tt.resetAt}
			if result := state.NeedsCriticalBlock(); result != tt.expected {
				t.Errorf("NeedsCriticalBlock() = %v, want %v (remaining=%d)", result, tt.expected, tt.remaining)
			}
		})
	}
}

func TestQuotaState_NeedsThrottling(t *testing.T) {
	tests := []struct {
		name      string
		remaining int
		expected  bool
	}{
		{name: "healthy state", remaining: 50, expected: false},
		{name: "at warning threshold", remaining: QuotaThresholdWarning, expected: false},
		{name: "just below warning threshold", remaining: QuotaThresholdWarning - 1, expected: true},
		{name: "at critical threshold", remaining: QuotaThresholdCritical, expected: true},
		{name: "below critical threshold", remaining: QuotaThresholdCritical - 1, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &QuotaState{Remaining: tt.remaining, ResetAt: time.Now().Add(time.Hour)}
			if result := state.NeedsThrottling(); result != tt.expected {
				t.Errorf("NeedsThrottling() = %v, want %v (remaining=%d)", result, tt.expected, tt.remaining)
			}
		})
	}
}

func TestQuotaState_TimeUntilReset(t *testing.T) {
	tests := []struct {
		name    string
		resetAt time.Time
		wantMin time.Duration
		wantMax time.Duration
	}{
		{name: "reset in future", resetAt: time.Now().Add(30 * time.Second), wantMin: 29 * time.Second, wantMax: 31 * time.Second},
		{name: "reset in past", resetAt: time.Now().Add(-30 * time.Second), wantMin: 0, wantMax: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &QuotaState{ResetAt: tt.resetAt}
			got := state.TimeUntilReset()
			if got < tt.wantMin || got > tt.wantMax {
				t.Errorf("TimeUntilReset() = %v, want between %v and %v", got, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestQuotaState_UpdateHealth(t *testing.T) {
	tests := []struct {
		remaining int
		expected  bool
	}{
		{remaining: 5000, expected: true},
		{remaining: QuotaThresholdHealthy, expected: true},
		{remaining: QuotaThresholdHealthy - 1, expected: false},
		{remaining: 0, expected: false},
	}

	for _, tt := range tests {
		state := &QuotaState{Remaining: tt.remaining}
		state.UpdateHealth()
		if state.IsHealthy != tt.expected {
			t.Errorf("UpdateHealth() with remaining=%d: IsHealthy = %v, want %v", tt.remaining, state.IsHealthy, tt.expected)
		}
	}
}
