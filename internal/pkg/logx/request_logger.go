package logx

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// AnonymizeIP masks the host part of an address: the last IPv4 octet is
// zeroed, IPv6 keeps only its first 64 bits.
// Unparseable input yields "unknown_ip".
func AnonymizeIP(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err == nil {
		addr = host
	}

	ip := net.ParseIP(addr)
	if ip == nil {
		return "unknown_ip"
	}

	if ip.IsLoopback() {
		return "127.0.0.1"
	}

	if v4 := ip.To4(); v4 != nil {
		return net.IPv4(v4[0], v4[1], v4[2], 0).String()
	}

	masked := make(net.IP, net.IPv6len)
	copy(masked, ip.To16()[:8])
	return masked.String()
}

// RequestLogger returns chi middleware that logs one line per request and
// stores a request-scoped logger in the context.
// Websocket upgrades are logged when the upgrade finishes, i.e. on disconnect.
func RequestLogger() func(next http.Handler) http.Handler {
	base := Component("http")

	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			logger := base.With().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("remote_ip", AnonymizeIP(r.RemoteAddr)).
				Str("request_method", r.Method).
				Str("request_path", r.URL.Path).
				Logger()

			r = r.WithContext(logger.WithContext(r.Context()))

			start := time.Now()
			next.ServeHTTP(ww, r)

			status := ww.Status()
			event := logger.Info()
			switch {
			case status >= 500:
				event = logger.Error()
			case status >= 400:
				event = logger.Warn()
			case strings.EqualFold(r.Header.Get("Upgrade"), "websocket"):
				event = logger.Debug()
			}

			event.
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("latency", time.Since(start)).
				Msg("Request completed")
		}

		return http.HandlerFunc(fn)
	}
}
