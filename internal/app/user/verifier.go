package user

import (
	"context"
	"errors"
	"fmt"

	"mentormatch/internal/pkg/auth/jwt"
)

// ErrVerification is returned when the credential could not be checked,
// as opposed to being checked and found invalid.
var ErrVerification = errors.New("verification error")

// Verifier resolves a bearer credential to an Identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// TokenVerifier checks signed identity tokens and, when a Store is set,
// confirms the account still exists.
type TokenVerifier struct {
	secret string
	store  Store
}

// NewTokenVerifier returns a TokenVerifier. store may be nil.
func NewTokenVerifier(secret string, store Store) *TokenVerifier {
	return &TokenVerifier{secret: secret, store: store}
}

// Verify returns the identity for token. Errors wrap jwt.ErrTokenMissing,
// jwt.ErrTokenInvalid or ErrVerification.
func (v *TokenVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, jwt.ErrTokenMissing
	}

	payload, err := jwt.ParseToken(token, v.secret)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMissing) || errors.Is(err, jwt.ErrTokenInvalid) {
			return Identity{}, err
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrVerification, err)
	}

	identity := FromPayload(payload)
	if v.store == nil {
		return identity, nil
	}

	account, err := v.store.GetByID(ctx, payload.ID)
	switch {
	case errors.Is(err, ErrNotFound):
		return Identity{}, fmt.Errorf("%w: account %s no longer exists", jwt.ErrTokenInvalid, payload.ID)
	case err != nil:
		return Identity{}, fmt.Errorf("%w: %v", ErrVerification, err)
	}

	return account.Identity, nil
}
