/*
Package handler provides the HTTP handlers and routing setup for the Mentor Match server.

This file defines the main Router, applying middleware for logging, CORS and
identity extraction before delegating to the REST and websocket handlers.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"mentormatch/internal/pkg/auth/jwt"
	"mentormatch/internal/pkg/logx"
	"mentormatch/internal/pkg/resp"
)

// Router sets up the main HTTP routing table for the application.
func Router(deps *AppDeps) http.Handler {
	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	wsUpgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-PoW-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", HandleHealth(deps))

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(api chi.Router) {
		api.Use(jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret))

		api.Route("/auth", func(auth chi.Router) {
			auth.With(deps.Limiters.Auth.Middleware).Get("/challenge", HandleGetChallenge(deps))
			auth.With(deps.Limiters.Auth.Middleware).Post("/challenge", HandleSolveChallenge(deps))
			auth.Post("/register", HandleRegister(deps))
			auth.With(deps.Limiters.Auth.Middleware).Post("/login", HandleLogin(deps))
			auth.With(jwt.RequireIdentity).Get("/me", HandleMe(deps))
		})

		api.Group(func(authed chi.Router) {
			authed.Use(jwt.RequireIdentity)

			authed.Get("/presence", HandleListPresence(deps))
			authed.Get("/realtime/config", HandleRealtimeConfig(deps))

			authed.Get("/sessions/{id}/activity", HandleSessionActivity(deps))
			authed.Post("/sessions/{id}/resources/presign", HandlePresignResourceUpload(deps))
			authed.Get("/files/download", HandlePresignDownload(deps))

			authed.Route("/notifications", func(n chi.Router) {
				n.Get("/", HandleListNotifications(deps))
				n.Post("/", HandleCreateNotification(deps))
				n.Get("/unread-count", HandleUnreadCount(deps))
				n.Put("/read-all", HandleMarkAllRead(deps))
				n.Put("/{id}/read", HandleMarkRead(deps))
				n.Delete("/{id}", HandleDeleteNotification(deps))
			})
		})
	})

	r.Get("/ws", HandleWebSocket(wsUpgrader, deps))

	return r
}

// HandleHealth reports liveness and realtime counts.
func HandleHealth(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := map[string]any{
			"status":  "ok",
			"service": "Mentor Match Server",
		}

		stats, err := deps.Hub.Stats(r.Context())
		if err != nil {
			data["status"] = "degraded"
		} else {
			data["realtime"] = stats
		}

		resp.RespondSuccess(w, r, data)
	}
}
