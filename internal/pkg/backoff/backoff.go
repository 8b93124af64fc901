// Package backoff computes bounded exponential delays with jitter for the
// client reconnection loop.
package backoff

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Policy defines an exponential backoff curve.
type Policy struct {
	// Initial is the delay before the first retry.
	Initial time.Duration
	// Max caps every computed delay.
	Max time.Duration
	// Factor multiplies the delay on each further attempt.
	Factor float64
	// Jitter adds up to Jitter*delay of random extra wait (0.0 to 1.0).
	Jitter float64
}

// DefaultPolicy mirrors the reconnection defaults of the web client:
// 1s initial, doubling, capped at 5s, 20% jitter.
func DefaultPolicy() Policy {
	return Policy{
		Initial: time.Second,
		Max:     5 * time.Second,
		Factor:  2,
		Jitter:  0.2,
	}
}

// Delay returns the wait before the given attempt (1-indexed).
func (p Policy) Delay(attempt int) time.Duration {
	return p.DelayWithRand(attempt, rand.Float64()) // #nosec G404 -- jitter needs no cryptographic randomness
}

// DelayWithRand is Delay with an explicit random value in [0,1).
func (p Policy) DelayWithRand(attempt int, randomValue float64) time.Duration {
	exp := math.Max(float64(attempt-1), 0)
	factor := p.Factor
	if factor < 1 {
		factor = 1
	}

	base := float64(p.Initial) * math.Pow(factor, exp)
	total := base + base*p.Jitter*randomValue

	if p.Max > 0 {
		total = math.Min(float64(p.Max), total)
	}
	return time.Duration(math.Round(total))
}

// Sleep waits for d or until ctx is done, returning ctx.Err() in the latter case.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
