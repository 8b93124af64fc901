package handler

import (
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"mentormatch/internal/app/notification"
	"mentormatch/internal/app/realtime"
	"mentormatch/internal/app/storage"
	"mentormatch/internal/app/user"
	"mentormatch/internal/configs"
	"mentormatch/internal/pkg/limiter"
	"mentormatch/internal/pkg/metrics"
	"mentormatch/internal/pkg/pow"
)

const (
	// HandshakeRate and HandshakeBurst bound websocket handshakes per IP.
	HandshakeRate  = 1
	HandshakeBurst = 10

	// AuthRate and AuthBurst bound login and challenge requests per IP.
	AuthRate  = 0.2
	AuthBurst = 5
)

// AppDeps carries everything the handlers need.
type AppDeps struct {
	Config        *configs.AppConfig
	Hub           *realtime.Hub
	Users         user.Store
	Verifier      user.Verifier
	Notifications *notification.Service

	// Storage is nil when object storage is not configured.
	Storage storage.StorageService

	// Challenger is nil when registration is not PoW-gated.
	Challenger *pow.Challenger

	Limiters *Limiters
	Metrics  *metrics.Metrics

	// Gatherer backs /metrics; nil means prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

// Limiters holds the per-IP limiters used by the router.
type Limiters struct {
	Handshake *limiter.IPRateLimiter
	Auth      *limiter.IPRateLimiter
}

// NewLimiters creates the default limiters. Call Stop on shutdown.
func NewLimiters() *Limiters {
	return &Limiters{
		Handshake: limiter.NewIPRateLimiter(rate.Limit(HandshakeRate), HandshakeBurst),
		Auth:      limiter.NewIPRateLimiter(rate.Limit(AuthRate), AuthBurst),
	}
}

// Stop releases the limiters' sweepers.
func (l *Limiters) Stop() {
	l.Handshake.Stop()
	l.Auth.Stop()
}
