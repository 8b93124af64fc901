package pow

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestChallengeFlow(t *testing.T) {
	c := NewChallenger(2)
	defer c.Stop()

	nonce := c.GenerateNonce()
	token, err := c.ValidateProof(nonce, Solve(nonce, 2))
	if err != nil {
		t.Fatalf("ValidateProof() error = %v", err)
	}

	r := httptest.NewRequest(http.MethodPost, "/api/auth/register", nil)
	r.Header.Set(TokenHeaderKey, token)
	if !c.ConsumeProofToken(r) {
		t.Fatal("fresh proof token rejected")
	}
	if c.ConsumeProofToken(r) {
		t.Fatal("proof token accepted twice")
	}
}

func TestNonceSingleUse(t *testing.T) {
	c := NewChallenger(1)
	defer c.Stop()

	nonce := c.GenerateNonce()
	counter := Solve(nonce, 1)
	if _, err := c.ValidateProof(nonce, counter); err != nil {
		t.Fatalf("ValidateProof() error = %v", err)
	}
	if _, err := c.ValidateProof(nonce, counter); !errors.Is(err, ErrNonceInvalid) {
		t.Fatalf("reused nonce error = %v, want ErrNonceInvalid", err)
	}
}

func TestWrongProof(t *testing.T) {
	c := NewChallenger(6)
	defer c.Stop()

	nonce := c.GenerateNonce()
	for i := 0; i < 3; i++ {
		counter := string(rune('a' + i))
		if Satisfies(nonce, counter, 6) {
			continue
		}
		if _, err := c.ValidateProof(nonce, counter); !errors.Is(err, ErrProofInvalid) {
			t.Fatalf("ValidateProof() error = %v, want ErrProofInvalid", err)
		}
		return
	}
}

func TestExpiredEntriesSwept(t *testing.T) {
	c := NewChallenger(0)
	defer c.Stop()

	now := time.Now()
	c.now = func() time.Time { return now }
	nonce := c.GenerateNonce()

	c.now = func() time.Time { return now.Add(NonceExpiryDuration + time.Second) }
	if _, err := c.ValidateProof(nonce, "0"); !errors.Is(err, ErrNonceInvalid) {
		t.Fatalf("expired nonce error = %v", err)
	}

	c.sweep()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.nonceStore) != 0 {
		t.Fatalf("nonce store not swept: %d entries", len(c.nonceStore))
	}
}
