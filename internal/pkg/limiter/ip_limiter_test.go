package limiter

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestAllowPerKey(t *testing.T) {
	l := NewIPRateLimiter(rate.Limit(0.001), 2)
	defer l.Stop()

	if !l.Allow("10.0.0.1") || !l.Allow("10.0.0.1") {
		t.Fatal("burst of 2 should be allowed")
	}
	if l.Allow("10.0.0.1") {
		t.Fatal("third request should be limited")
	}
	if !l.Allow("10.0.0.2") {
		t.Fatal("other key must have its own bucket")
	}
}

func TestSweepRemovesRefilledBuckets(t *testing.T) {
	l := newIPRateLimiter(rate.Limit(1), 1, time.Hour)
	defer l.Stop()

	l.GetLimiter("idle")
	l.Allow("busy")

	removed, remaining := l.sweep(time.Now())
	if removed != 1 || remaining != 1 {
		t.Fatalf("sweep() = (%d, %d), want (1, 1)", removed, remaining)
	}
	if l.Len() != 1 {
		t.Fatalf("Len() = %d", l.Len())
	}
}

func TestMiddleware(t *testing.T) {
	l := NewIPRateLimiter(rate.Limit(0.001), 1)
	defer l.Stop()

	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	if first.Code != http.StatusNoContent {
		t.Fatalf("first status = %d", first.Code)
	}

	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", second.Code)
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "198.51.100.7:4242"
	if got := ClientIP(r); got != "198.51.100.7" {
		t.Fatalf("ClientIP() = %q", got)
	}
	r.RemoteAddr = ""
	if got := ClientIP(r); got != "unknown_ip" {
		t.Fatalf("ClientIP() = %q", got)
	}
}
