package interp

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thruflo/stagehand/internal/block"
)

func drain(c *cursor) []Step {
	var steps []Step
	for {
		s, ok := c.next()
		if !ok {
			return steps
		}
		steps = append(steps, s)
	}
}

func TestCursorExpandsRepeats(t *testing.T) {
	program := []block.Block{
		block.Move(1),
		block.Repeat(2, block.Turn(1), block.Move(2)),
		block.Wait(1),
	}

	steps := drain(newCursor(program, EmptyRepeatNudge))

	type pos struct{ index, iter, sub int }
	var got []pos
	for _, s := range steps {
		got = append(got, pos{s.Index, s.Iteration, s.Sub})
	}

	assert.Equal(t, []pos{
		{0, -1, -1},
		{1, 0, 0}, {1, 0, 1},
		{1, 1, 0}, {1, 1, 1},
		{2, -1, -1},
	}, got)
	assert.False(t, steps[0].Nested())
	assert.True(t, steps[1].Nested())
	assert.Equal(t, block.KindMove, steps[2].Block.Kind)
}

func TestCursorZeroCountRepeat(t *testing.T) {
	steps := drain(newCursor([]block.Block{block.Repeat(0, block.Move(1)), block.Move(2)}, EmptyRepeatNudge))
	assert.Len(t, steps, 1)
	assert.Equal(t, 1, steps[0].Index)
}

func TestCursorEmptyRepeat(t *testing.T) {
	nudges := drain(newCursor([]block.Block{block.Repeat(2)}, EmptyRepeatNudge))
	assert.Len(t, nudges, 2)
	for _, s := range nudges {
		assert.True(t, s.Nudge)
	}

	assert.Empty(t, drain(newCursor([]block.Block{block.Repeat(2)}, EmptyRepeatNoop)))
}

func TestCursorEmptyList(t *testing.T) {
	assert.Empty(t, drain(newCursor(nil, EmptyRepeatNudge)))
}
