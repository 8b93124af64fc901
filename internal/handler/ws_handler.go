package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"mentormatch/internal/app/realtime"
	"mentormatch/internal/pkg/auth/jwt"
	"mentormatch/internal/pkg/errs"
	"mentormatch/internal/pkg/limiter"
	"mentormatch/internal/pkg/logx"
	"mentormatch/internal/pkg/resp"
)

// HandleWebSocket authenticates the handshake, upgrades it and hands the
// connection to the hub. Rejected handshakes get a JSON error body and are
// never registered.
func HandleWebSocket(upgrader websocket.Upgrader, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientIP := limiter.ClientIP(r)

		if !deps.Limiters.Handshake.Allow(clientIP) {
			logx.Warn("WebSocket handshake rate limited", "ip", logx.AnonymizeIP(clientIP))
			deps.Metrics.AdmissionRejected("rate_limited")
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		identity, err := deps.Verifier.Verify(r.Context(), jwt.TokenFromRequest(r))
		if err != nil {
			customErr, reason := admissionError(err)
			logx.Warn("WebSocket handshake rejected",
				"ip", logx.AnonymizeIP(clientIP),
				"reason", reason,
				"error", err.Error(),
			)
			deps.Metrics.AdmissionRejected(reason)
			resp.RespondError(w, r, customErr)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "WebSocket upgrade failed", "user_id", identity.ID)
			return
		}

		client := realtime.NewClient(deps.Hub, conn, identity)

		if err := deps.Hub.Register(client); err != nil {
			logx.Warn("Realtime hub unavailable, closing connection", "user_id", identity.ID)
			closeMsg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
			_ = conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second))
			_ = conn.Close()
			return
		}

		go client.WritePump()
		client.ReadPump()
	}
}

// admissionError maps a verifier failure to the response error and the
// metric label.
func admissionError(err error) (*errs.CustomError, string) {
	switch {
	case errors.Is(err, jwt.ErrTokenMissing):
		return errs.NewError(errs.ErrAuthTokenMissing), "missing_token"
	case errors.Is(err, jwt.ErrTokenInvalid):
		return errs.NewError(errs.ErrAuthTokenInvalid), "invalid_token"
	default:
		return errs.NewError(errs.ErrAuthVerification), "verification_error"
	}
}

// realtimeError maps hub call failures.
func realtimeError(err error) *errs.CustomError {
	if errors.Is(err, realtime.ErrHubStopped) {
		return errs.NewError(errs.ErrRealtimeUnavailable)
	}
	return errs.From(err)
}
