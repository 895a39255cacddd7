package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(cfg LimitConfig) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	l := NewLimiter(cfg)
	l.now = clock.now
	return l, clock
}

func TestLimiter_Window(t *testing.T) {
	t.Parallel()

	l, clock := newTestLimiter(LimitConfig{MaxAttempts: 2, Window: time.Minute})

	assert.True(t, l.Allow("a").Allowed)
	assert.True(t, l.Allow("a").Allowed)

	d := l.Allow("a")
	assert.False(t, d.Allowed)
	assert.False(t, d.Blocked)
	assert.Equal(t, time.Minute, d.RetryAfter)

	assert.True(t, l.Allow("b").Allowed, "clients are independent")

	clock.advance(time.Minute)
	assert.True(t, l.Allow("a").Allowed)
}

func TestLimiter_BlocksAfterFailures(t *testing.T) {
	t.Parallel()

	l, clock := newTestLimiter(LimitConfig{
		MaxAttempts: 100,
		BlockAfter:  3,
		BlockTime:   time.Minute,
		MaxBlock:    3 * time.Minute,
	})

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("a").Allowed)
		l.Failed("a")
	}

	d := l.Allow("a")
	assert.True(t, d.Blocked)
	assert.Equal(t, time.Minute, d.RetryAfter)

	clock.advance(time.Minute)
	assert.True(t, l.Allow("a").Allowed)

	// Three more failures double the block, capped at MaxBlock.
	for i := 0; i < 3; i++ {
		l.Failed("a")
	}
	assert.Equal(t, 2*time.Minute, l.Allow("a").RetryAfter)

	for i := 0; i < 6; i++ {
		l.Failed("a")
	}
	assert.Equal(t, 3*time.Minute, l.Allow("a").RetryAfter)
}

func TestLimiter_SuccessClearsFailures(t *testing.T) {
	t.Parallel()

	l, _ := newTestLimiter(LimitConfig{MaxAttempts: 100, BlockAfter: 2})

	l.Failed("a")
	l.Succeeded("a")
	l.Failed("a")
	assert.True(t, l.Allow("a").Allowed)

	l.Failed("a")
	assert.True(t, l.Allow("a").Blocked)
	l.Succeeded("a")
	assert.True(t, l.Allow("a").Allowed)
}

func TestLimiter_Sweep(t *testing.T) {
	t.Parallel()

	l, clock := newTestLimiter(LimitConfig{Window: time.Minute, BlockAfter: 1, BlockTime: time.Minute})

	l.Allow("a")
	l.Failed("b")
	clock.advance(2 * time.Minute)
	l.Sweep()

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Empty(t, l.attempts)
	assert.Empty(t, l.blocked)
	assert.Empty(t, l.failures)
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "remote addr", remote: "10.0.0.1:1234", want: "10.0.0.1"},
		{name: "remote without port", remote: "10.0.0.1", want: "10.0.0.1"},
		{name: "forwarded for", headers: map[string]string{"X-Forwarded-For": " 1.2.3.4 , 5.6.7.8"}, remote: "10.0.0.1:1", want: "1.2.3.4"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "9.9.9.9"}, remote: "10.0.0.1:1", want: "9.9.9.9"},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest("POST", "/auth", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(r))
		})
	}
}
