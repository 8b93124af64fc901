package jwt

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const testSecret = "test-secret"

func TestGenerateParseRoundTrip(t *testing.T) {
	token, err := GenerateToken(&Payload{ID: "7", Name: "Ada", Email: "ada@example.com", Role: "mentor"}, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	payload, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if payload.ID != "7" || payload.Name != "Ada" || payload.Role != "mentor" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if payload.Issuer != TokenIssuer || payload.Subject != "7" {
		t.Fatalf("standard claims not set: %+v", payload.StandardClaims)
	}
}

func TestParseTokenFailures(t *testing.T) {
	expired, err := GenerateToken(&Payload{ID: "7"}, testSecret, -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	forged, err := GenerateToken(&Payload{ID: "7"}, "other-secret", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", ErrTokenMissing},
		{"garbage", "not.a.jwt", ErrTokenInvalid},
		{"expired", expired, ErrTokenInvalid},
		{"wrong secret", forged, ErrTokenInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseToken(tt.token, testSecret)
			if !errors.Is(err, tt.want) {
				t.Fatalf("ParseToken() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPeekPayload(t *testing.T) {
	token, err := GenerateToken(&Payload{ID: "7", Name: "Ada"}, "server-only-secret", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	payload, err := PeekPayload(token)
	if err != nil || payload.ID != "7" || payload.Name != "Ada" {
		t.Fatalf("PeekPayload() = %+v, %v", payload, err)
	}

	if _, err := PeekPayload(""); !errors.Is(err, ErrTokenMissing) {
		t.Fatalf("PeekPayload(empty) error = %v", err)
	}
	if _, err := PeekPayload("not.a.token"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("PeekPayload(garbage) error = %v", err)
	}
}

func TestGenerateTokenRequiresSecretAndID(t *testing.T) {
	if _, err := GenerateToken(&Payload{ID: "1"}, "", time.Hour); !errors.Is(err, ErrNoSecret) {
		t.Fatalf("expected ErrNoSecret, got %v", err)
	}
	if _, err := GenerateToken(&Payload{}, testSecret, time.Hour); err == nil {
		t.Fatal("expected error for empty id")
	}
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws?token=from-query", nil)
	if got := TokenFromRequest(r); got != "from-query" {
		t.Fatalf("query token = %q", got)
	}

	r.Header.Set("Authorization", "Bearer from-header")
	if got := TokenFromRequest(r); got != "from-header" {
		t.Fatalf("header token = %q", got)
	}

	r.Header.Set("Authorization", "Basic abc")
	if got := TokenFromRequest(r); got != "" {
		t.Fatalf("non-bearer header should yield empty token, got %q", got)
	}
}

func TestMiddleware(t *testing.T) {
	token, _ := GenerateToken(&Payload{ID: "3", Role: "mentee"}, testSecret, time.Hour)

	var seen *Payload
	h := IdentityExtractorMiddleware(testSecret)(RequireIdentity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetPayloadFromContext(r)
	})))

	anon := httptest.NewRecorder()
	h.ServeHTTP(anon, httptest.NewRequest(http.MethodGet, "/api/notifications", nil))
	if anon.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d", anon.Code)
	}

	r := httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(httptest.NewRecorder(), r)
	if seen == nil || seen.ID != "3" {
		t.Fatalf("payload not propagated: %+v", seen)
	}
}
