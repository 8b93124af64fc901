/*
Package pow implements a hashcash-style Proof-of-Work gate for account
registration.

A client fetches a nonce, searches for a counter such that
sha256(nonce+counter) in hex starts with `difficulty` zeros, and exchanges the
solution for a short-lived single-use proof token that it then sends in the
X-PoW-Token header of the guarded request.
*/
package pow

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// TokenHeaderKey carries the proof token on guarded requests.
	TokenHeaderKey = "X-PoW-Token"

	// ProofTokenDuration is how long an issued proof token stays valid.
	ProofTokenDuration = 30 * time.Second

	// NonceExpiryDuration is how long a challenge nonce stays solvable.
	NonceExpiryDuration = 5 * time.Minute
)

var (
	// ErrNonceInvalid is returned for unknown, expired or already used nonces.
	ErrNonceInvalid = errors.New("nonce expired or invalid")

	// ErrProofInvalid is returned when the hash misses the difficulty target.
	ErrProofInvalid = errors.New("proof does not meet difficulty requirement")
)

// Challenger issues nonces and proof tokens. It is safe for concurrent use.
type Challenger struct {
	difficulty int

	mu         sync.Mutex
	nonceStore map[string]time.Time
	tokenStore map[string]time.Time

	now  func() time.Time
	stop chan struct{}
	once sync.Once
}

// NewChallenger returns a Challenger requiring difficulty leading hex zeros
// and starts its expiry sweeper. Call Stop to release it.
func NewChallenger(difficulty int) *Challenger {
	c := &Challenger{
		difficulty: difficulty,
		nonceStore: make(map[string]time.Time),
		tokenStore: make(map[string]time.Time),
		now:        time.Now,
		stop:       make(chan struct{}),
	}

	go c.sweepLoop()

	return c
}

// Difficulty returns the number of leading zeros required.
func (c *Challenger) Difficulty() int {
	return c.difficulty
}

// GenerateNonce creates and stores a new challenge nonce.
func (c *Challenger) GenerateNonce() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	nonce := uuid.NewString()
	c.nonceStore[nonce] = c.now().Add(NonceExpiryDuration)
	return nonce
}

// ValidateProof checks a solution and, on success, consumes the nonce and
// returns a new proof token.
func (c *Challenger) ValidateProof(nonce, counter string) (string, error) {
	if !Satisfies(nonce, counter, c.difficulty) {
		return "", ErrProofInvalid
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	expiry, ok := c.nonceStore[nonce]
	if !ok || c.now().After(expiry) {
		return "", ErrNonceInvalid
	}
	delete(c.nonceStore, nonce)

	token := uuid.NewString()
	c.tokenStore[token] = c.now().Add(ProofTokenDuration)
	return token, nil
}

// ConsumeProofToken reports whether r carries a valid proof token in the
// X-PoW-Token header, and invalidates it so it cannot be replayed.
func (c *Challenger) ConsumeProofToken(r *http.Request) bool {
	token := r.Header.Get(TokenHeaderKey)
	if token == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	expiry, ok := c.tokenStore[token]
	if !ok {
		return false
	}
	delete(c.tokenStore, token)

	return !c.now().After(expiry)
}

// Stop terminates the sweeper.
func (c *Challenger) Stop() {
	c.once.Do(func() { close(c.stop) })
}

// Satisfies reports whether sha256(nonce+counter) meets the difficulty.
func Satisfies(nonce, counter string, difficulty int) bool {
	hash := sha256.Sum256([]byte(nonce + counter))
	return strings.HasPrefix(hex.EncodeToString(hash[:]), strings.Repeat("0", difficulty))
}

// Solve brute-forces a counter for nonce. It is used by the CLI and tests.
func Solve(nonce string, difficulty int) string {
	for i := 0; ; i++ {
		counter := strconv.Itoa(i)
		if Satisfies(nonce, counter, difficulty) {
			return counter
		}
	}
}

func (c *Challenger) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Challenger) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for nonce, expiry := range c.nonceStore {
		if now.After(expiry) {
			delete(c.nonceStore, nonce)
		}
	}
	for token, expiry := range c.tokenStore {
		if now.After(expiry) {
			delete(c.tokenStore, token)
		}
	}
}
