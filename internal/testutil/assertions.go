package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thruflo/stagehand/internal/block"
	"github.com/thruflo/stagehand/internal/geom"
)

// PointTolerance absorbs floating point error from heading motion.
const PointTolerance = 1e-6

// AssertPoint asserts that two positions are equal within PointTolerance.
func AssertPoint(t *testing.T, expected, actual geom.Point) {
	t.Helper()
	assert.InDelta(t, expected.X, actual.X, PointTolerance, "x mismatch")
	assert.InDelta(t, expected.Y, actual.Y, PointTolerance, "y mismatch")
}

// AssertBlockKinds asserts that blocks has exactly the given kinds, in order.
func AssertBlockKinds(t *testing.T, expected []block.Kind, blocks []block.Block) {
	t.Helper()

	require.Len(t, blocks, len(expected), "block count mismatch")
	for i := range expected {
		assert.Equal(t, expected[i], blocks[i].Kind, "block[%d].Kind mismatch", i)
	}
}

// WaitFor polls cond every 5ms until it holds, failing the test after 5s.
func WaitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 5*time.Second, 5*time.Millisecond, msg)
}

// NeverWithin asserts that cond stays false for d.
func NeverWithin(t *testing.T, cond func() bool, d time.Duration, msg string) {
	t.Helper()
	assert.Never(t, cond, d, time.Millisecond, msg)
}
