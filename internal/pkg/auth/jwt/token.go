/*
Package jwt issues and parses the HS256 bearer tokens that identify users on
both the REST API and the websocket handshake.
*/
package jwt

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
)

const (
	// IdentityExpiration is the lifetime of a login token.
	IdentityExpiration = 24 * time.Hour

	// TokenIssuer identifies tokens minted by this server.
	TokenIssuer = "MentorMatch"

	// QueryTokenKey is the query parameter browsers use to pass the token on
	// the websocket handshake, where custom headers are unavailable.
	QueryTokenKey = "token"
)

var (
	// ErrTokenMissing is returned when no credential is present.
	ErrTokenMissing = errors.New("token missing")

	// ErrTokenInvalid is returned for malformed, forged or expired tokens.
	ErrTokenInvalid = errors.New("token invalid")

	// ErrNoSecret is returned when the signing secret is empty.
	ErrNoSecret = errors.New("jwt secret not configured")
)

// GenerateToken signs payload with secretKey, setting issuer, issue time and
// expiry from duration.
func GenerateToken(payload *Payload, secretKey string, duration time.Duration) (string, error) {
	if secretKey == "" {
		return "", ErrNoSecret
	}
	if strings.TrimSpace(payload.ID) == "" {
		return "", errors.New("payload id required")
	}

	now := time.Now()
	payload.StandardClaims = jwt.StandardClaims{
		Subject:   payload.ID,
		ExpiresAt: now.Add(duration).Unix(),
		IssuedAt:  now.Unix(),
		Issuer:    TokenIssuer,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, payload)
	return token.SignedString([]byte(secretKey))
}

// ParseToken validates tokenString and returns its claims. Any validation
// failure is reported as ErrTokenInvalid wrapping the library error.
func ParseToken(tokenString string, secretKey string) (*Payload, error) {
	if secretKey == "" {
		return nil, ErrNoSecret
	}
	if strings.TrimSpace(tokenString) == "" {
		return nil, ErrTokenMissing
	}

	claims := &Payload{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid || claims.ID == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// PeekPayload decodes the claims of tokenString without checking its
// signature or expiry. Clients use it to learn their own identity; servers
// must use ParseToken.
func PeekPayload(tokenString string) (*Payload, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, ErrTokenMissing
	}

	claims := &Payload{}
	if _, _, err := new(jwt.Parser).ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.ID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// TokenFromRequest returns the bearer token from the Authorization header,
// falling back to the `token` query parameter. It returns "" when neither is set.
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return strings.TrimSpace(r.URL.Query().Get(QueryTokenKey))
}
