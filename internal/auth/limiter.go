package auth

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/thruflo/stagehand/internal/logging"
)

// LimitConfig bounds login attempts per client.
type LimitConfig struct {
	MaxAttempts int           // attempts allowed per window
	Window      time.Duration // sliding window
	BlockAfter  int           // consecutive failures before a block
	BlockTime   time.Duration // first block; doubles for every further BlockAfter failures
	MaxBlock    time.Duration
}

// DefaultLimitConfig returns the login limits used by the server.
func DefaultLimitConfig() LimitConfig {
	return LimitConfig{
		MaxAttempts: 5,
		Window:      time.Minute,
		BlockAfter:  10,
		BlockTime:   5 * time.Minute,
		MaxBlock:    24 * time.Hour,
	}
}

// Decision is the outcome of Limiter.Allow.
type Decision struct {
	Allowed    bool
	Blocked    bool          // rejected because of repeated failures
	RetryAfter time.Duration // set when not allowed
}

// Limiter is a sliding-window limiter with exponential blocking after
// repeated failures.
type Limiter struct {
	mu       sync.Mutex
	cfg      LimitConfig
	attempts map[string][]time.Time
	failures map[string]int
	blocked  map[string]time.Time // client -> block expiry
	now      func() time.Time
	log      *logging.Logger
}

// NewLimiter returns a Limiter. Zero fields of cfg take their defaults.
func NewLimiter(cfg LimitConfig) *Limiter {
	def := DefaultLimitConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.BlockAfter <= 0 {
		cfg.BlockAfter = def.BlockAfter
	}
	if cfg.BlockTime <= 0 {
		cfg.BlockTime = def.BlockTime
	}
	if cfg.MaxBlock <= 0 {
		cfg.MaxBlock = def.MaxBlock
	}

	return &Limiter{
		cfg:      cfg,
		attempts: make(map[string][]time.Time),
		failures: make(map[string]int),
		blocked:  make(map[string]time.Time),
		now:      time.Now,
		log:      logging.With("component", "auth"),
	}
}

// Allow records an attempt from client and reports whether it may proceed.
func (l *Limiter) Allow(client string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	if expiry, ok := l.blocked[client]; ok {
		if now.Before(expiry) {
			return Decision{Blocked: true, RetryAfter: expiry.Sub(now)}
		}
		delete(l.blocked, client)
	}

	recent := l.pruneLocked(client, now)
	if len(recent) >= l.cfg.MaxAttempts {
		retry := recent[0].Add(l.cfg.Window).Sub(now)
		if retry <= 0 {
			retry = time.Second
		}
		l.log.Debug("login rate limited", "client", client, "attempts", len(recent), "retry_after", retry)
		return Decision{RetryAfter: retry}
	}

	l.attempts[client] = append(recent, now)
	return Decision{Allowed: true}
}

// Succeeded clears the client's failure history.
func (l *Limiter) Succeeded(client string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.failures, client)
	delete(l.blocked, client)
}

// Failed records a failed login and blocks the client once failures reach
// BlockAfter.
func (l *Limiter) Failed(client string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.failures[client]++
	n := l.failures[client]
	if n < l.cfg.BlockAfter {
		return
	}

	blocks := (n - l.cfg.BlockAfter) / l.cfg.BlockAfter
	d := l.cfg.BlockTime
	for i := 0; i < blocks && d < l.cfg.MaxBlock; i++ {
		d *= 2
	}
	d = min(d, l.cfg.MaxBlock)

	l.blocked[client] = l.now().Add(d)
	l.log.Warn("login blocked", "client", client, "failures", n, "duration", d)
}

// Sweep drops attempts outside the window, expired blocks and failure
// counts of clients no longer seen.
func (l *Limiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for client := range l.attempts {
		if len(l.pruneLocked(client, now)) == 0 {
			delete(l.attempts, client)
		}
	}
	for client, expiry := range l.blocked {
		if !now.Before(expiry) {
			delete(l.blocked, client)
		}
	}
	for client := range l.failures {
		_, isBlocked := l.blocked[client]
		_, seen := l.attempts[client]
		if !isBlocked && !seen {
			delete(l.failures, client)
		}
	}
}

func (l *Limiter) pruneLocked(client string, now time.Time) []time.Time {
	start := now.Add(-l.cfg.Window)
	kept := l.attempts[client][:0]
	for _, ts := range l.attempts[client] {
		if ts.After(start) {
			kept = append(kept, ts)
		}
	}
	l.attempts[client] = kept
	return kept
}

// ClientIP identifies the caller, preferring proxy headers.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
