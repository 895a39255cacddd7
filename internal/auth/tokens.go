package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultTokenTTL is how long issued tokens stay valid.
const DefaultTokenTTL = 24 * time.Hour

// Tokens issues and validates opaque bearer tokens.
type Tokens struct {
	mu     sync.RWMutex
	ttl    time.Duration
	tokens map[string]time.Time // token -> expiry
	now    func() time.Time
}

// NewTokens returns an empty store. A non-positive ttl means DefaultTokenTTL.
func NewTokens(ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Tokens{
		ttl:    ttl,
		tokens: make(map[string]time.Time),
		now:    time.Now,
	}
}

// Issue creates a new token of 256 random bits.
func (t *Tokens) Issue() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	token := hex.EncodeToString(buf)

	t.mu.Lock()
	t.tokens[token] = t.now().Add(t.ttl)
	t.mu.Unlock()

	return token, nil
}

// Valid reports whether token was issued and has not expired.
func (t *Tokens) Valid(token string) bool {
	if token == "" {
		return false
	}

	t.mu.RLock()
	expiry, ok := t.tokens[token]
	t.mu.RUnlock()

	return ok && t.now().Before(expiry)
}

// Revoke forgets token.
func (t *Tokens) Revoke(token string) {
	t.mu.Lock()
	delete(t.tokens, token)
	t.mu.Unlock()
}

// Len returns the number of tokens held, expired or not.
func (t *Tokens) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.tokens)
}

// Sweep drops expired tokens.
func (t *Tokens) Sweep() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for token, expiry := range t.tokens {
		if !now.Before(expiry) {
			delete(t.tokens, token)
		}
	}
}

// SweepEvery calls Sweep on every tick until ctx is done.
func (t *Tokens) SweepEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Sweep()
		}
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value.
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token, token != ""
}
