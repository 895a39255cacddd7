package testutil

import (
	"context"
	"testing"
	"time"
)

const (
	// DefaultRunTimeout bounds a whole stage run in tests.
	DefaultRunTimeout = 10 * time.Second

	// ShortTimeout bounds a single block or an HTTP round trip.
	ShortTimeout = 2 * time.Second

	// DefaultTestBuffer is kept free before the test deadline for cleanup.
	DefaultTestBuffer = 2 * time.Second
)

// ContextWithTestDeadline returns a context that ends DefaultTestBuffer
// before the test deadline, or after fallback, whichever comes first.
func ContextWithTestDeadline(t *testing.T, fallback time.Duration) (context.Context, context.CancelFunc) {
	t.Helper()
	return ContextWithTestDeadlineBuffer(t, fallback, DefaultTestBuffer)
}

// ContextWithTestDeadlineBuffer is ContextWithTestDeadline with a custom
// buffer.
func ContextWithTestDeadlineBuffer(t *testing.T, fallback, buffer time.Duration) (context.Context, context.CancelFunc) {
	t.Helper()

	if deadline, ok := t.Deadline(); ok {
		cutoff := deadline.Add(-buffer)
		if left := time.Until(cutoff); left > 0 && left < fallback {
			return context.WithDeadline(context.Background(), cutoff)
		}
	}
	return context.WithTimeout(context.Background(), fallback)
}

// RunContext is for waiting on a stage run.
func RunContext(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return ContextWithTestDeadline(t, DefaultRunTimeout)
}

// ShortOperationContext is for quick operations.
func ShortOperationContext(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return ContextWithTestDeadline(t, ShortTimeout)
}
