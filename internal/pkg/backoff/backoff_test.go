package backoff

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDelayWithRand(t *testing.T) {
	tests := []struct {
		name        string
		policy      Policy
		attempt     int
		randomValue float64
		expected    time.Duration
	}{
		{
			name:        "first attempt uses initial",
			policy:      Policy{Initial: 100 * time.Millisecond, Max: 10 * time.Second, Factor: 2},
			attempt:     1,
			randomValue: 0.5,
			expected:    100 * time.Millisecond,
		},
		{
			name:        "third attempt quadruples",
			policy:      Policy{Initial: 100 * time.Millisecond, Max: 10 * time.Second, Factor: 2},
			attempt:     3,
			randomValue: 0.5,
			expected:    400 * time.Millisecond,
		},
		{
			name:        "clamped to max",
			policy:      Policy{Initial: 100 * time.Millisecond, Max: 500 * time.Millisecond, Factor: 2},
			attempt:     10,
			randomValue: 0,
			expected:    500 * time.Millisecond,
		},
		{
			name:        "jitter adds proportionally",
			policy:      Policy{Initial: time.Second, Max: time.Minute, Factor: 2, Jitter: 0.2},
			attempt:     1,
			randomValue: 0.5,
			expected:    1100 * time.Millisecond,
		},
		{
			name:        "zero attempt treated as first",
			policy:      Policy{Initial: 250 * time.Millisecond, Factor: 3},
			attempt:     0,
			randomValue: 0,
			expected:    250 * time.Millisecond,
		},
		{
			name:        "factor below one is linear",
			policy:      Policy{Initial: 250 * time.Millisecond, Factor: 0.5},
			attempt:     4,
			randomValue: 0,
			expected:    250 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.DelayWithRand(tt.attempt, tt.randomValue); got != tt.expected {
				t.Fatalf("DelayWithRand() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestDefaultPolicyBounded(t *testing.T) {
	p := DefaultPolicy()
	for attempt := 1; attempt <= 20; attempt++ {
		if d := p.Delay(attempt); d > p.Max {
			t.Fatalf("attempt %d delay %v exceeds max %v", attempt, d, p.Max)
		}
	}
}

func TestSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("Sleep() error = %v, want context.Canceled", err)
	}
}

func TestSleepCompletes(t *testing.T) {
	if err := Sleep(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("Sleep() error = %v", err)
	}
}
