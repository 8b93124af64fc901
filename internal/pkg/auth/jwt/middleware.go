package jwt

import (
	"context"
	"net/http"

	"mentormatch/internal/pkg/errs"
	"mentormatch/internal/pkg/logx"
	"mentormatch/internal/pkg/resp"
)

type contextKey string

// ContextAuthPayloadKey stores the parsed *Payload in the request context.
const ContextAuthPayloadKey contextKey = "auth_payload"

// IdentityExtractorMiddleware parses an optional bearer token and stores its
// Payload in the context. Requests without a valid token continue anonymously.
func IdentityExtractorMiddleware(secretKey string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := TokenFromRequest(r)
			if tokenString == "" {
				next.ServeHTTP(w, r)
				return
			}

			payload, err := ParseToken(tokenString, secretKey)
			if err != nil {
				logx.Debug("Invalid or expired JWT provided, treating as anonymous", "error", err.Error())
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPayload(r.Context(), payload)))
		})
	}
}

// RequireIdentity rejects anonymous requests with ErrUnauthorized. It must be
// mounted after IdentityExtractorMiddleware.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetPayloadFromContext(r) == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithPayload returns a copy of ctx carrying payload.
func WithPayload(ctx context.Context, payload *Payload) context.Context {
	return context.WithValue(ctx, ContextAuthPayloadKey, payload)
}

// GetPayloadFromContext returns the authenticated Payload, or nil for anonymous requests.
func GetPayloadFromContext(r *http.Request) *Payload {
	payload, ok := r.Context().Value(ContextAuthPayloadKey).(*Payload)
	if !ok {
		return nil
	}
	return payload
}
