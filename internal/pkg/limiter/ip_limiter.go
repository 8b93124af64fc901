/*
Package limiter provides token-bucket rate limiting keyed by client IP.

Each key gets its own rate.Limiter. A background sweeper drops limiters whose
bucket has refilled completely, since those keys have been idle for at least
one full refill period.
*/
package limiter

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"mentormatch/internal/pkg/errs"
	"mentormatch/internal/pkg/logx"
	"mentormatch/internal/pkg/resp"
)

// DefaultSweepInterval is how often idle limiters are removed.
const DefaultSweepInterval = 3 * time.Minute

// IPRateLimiter holds one token bucket per key.
type IPRateLimiter struct {
	mu     sync.Mutex
	limits map[string]*rate.Limiter

	r rate.Limit
	b int

	stop     chan struct{}
	stopOnce sync.Once
}

// NewIPRateLimiter returns a limiter allowing r events per second with burst b
// per key, and starts its sweeper. Call Stop to release the sweeper.
func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return newIPRateLimiter(r, b, DefaultSweepInterval)
}

func newIPRateLimiter(r rate.Limit, b int, sweep time.Duration) *IPRateLimiter {
	i := &IPRateLimiter{
		limits: make(map[string]*rate.Limiter),
		r:      r,
		b:      b,
		stop:   make(chan struct{}),
	}

	go i.sweepLoop(sweep)

	return i
}

// Allow consumes one token for key.
func (i *IPRateLimiter) Allow(key string) bool {
	return i.GetLimiter(key).Allow()
}

// GetLimiter returns the limiter for key, creating it on first use.
func (i *IPRateLimiter) GetLimiter(key string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	limiter, ok := i.limits[key]
	if !ok {
		limiter = rate.NewLimiter(i.r, i.b)
		i.limits[key] = limiter
	}
	return limiter
}

// Len returns the number of tracked keys.
func (i *IPRateLimiter) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.limits)
}

// Stop terminates the sweeper. It is safe to call more than once.
func (i *IPRateLimiter) Stop() {
	i.stopOnce.Do(func() { close(i.stop) })
}

func (i *IPRateLimiter) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-i.stop:
			return
		case now := <-ticker.C:
			removed, remaining := i.sweep(now)
			if removed > 0 {
				logx.Debug("Rate limiter sweep", "removed", removed, "remaining", remaining)
			}
		}
	}
}

func (i *IPRateLimiter) sweep(now time.Time) (removed, remaining int) {
	i.mu.Lock()
	defer i.mu.Unlock()

	for key, limiter := range i.limits {
		if limiter.TokensAt(now) >= float64(limiter.Burst()) {
			delete(i.limits, key)
			removed++
		}
	}
	return removed, len(i.limits)
}

// ClientIP extracts the host part of r.RemoteAddr, which chi's RealIP
// middleware has already rewritten from proxy headers.
func ClientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	if ip == "" {
		ip = "unknown_ip"
	}
	return ip
}

// Middleware rejects requests over the per-IP limit with ErrRateLimitExceeded.
func (i *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !i.Allow(ClientIP(r)) {
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		next.ServeHTTP(w, r)
	})
}
