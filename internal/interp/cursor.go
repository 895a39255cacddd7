package interp

import "github.com/thruflo/stagehand/internal/block"

// Step is one unit of work the driver loop executes.
type Step struct {
	Index     int // top-level block index
	Iteration int // repeat iteration, -1 outside a repeat
	Sub       int // sub-block index, -1 outside a repeat or for a nudge
	Block     block.Block
	Nudge     bool // empty-repeat iteration
}

// Nested reports whether the step came from inside a repeat.
func (s Step) Nested() bool {
	return s.Iteration >= 0
}

// cursor walks a block list, expanding repeats lazily so a large count never
// allocates more than the list itself.
type cursor struct {
	blocks []block.Block
	nudge  bool

	index int
	iter  int
	sub   int
}

func newCursor(blocks []block.Block, policy EmptyRepeatPolicy) *cursor {
	return &cursor{blocks: blocks, nudge: policy == EmptyRepeatNudge}
}

func (c *cursor) advance() {
	c.index++
	c.iter, c.sub = 0, 0
}

// next returns the next step, or false once the list is exhausted.
func (c *cursor) next() (Step, bool) {
	for c.index < len(c.blocks) {
		b := c.blocks[c.index]

		if b.Kind != block.KindRepeat {
			s := Step{Index: c.index, Iteration: -1, Sub: -1, Block: b}
			c.advance()
			return s, true
		}

		if c.iter >= b.Count {
			c.advance()
			continue
		}

		if len(b.SubBlocks) == 0 {
			if !c.nudge {
				c.advance()
				continue
			}
			s := Step{Index: c.index, Iteration: c.iter, Sub: -1, Block: b, Nudge: true}
			c.iter++
			return s, true
		}

		if c.sub >= len(b.SubBlocks) {
			c.iter++
			c.sub = 0
			continue
		}

		s := Step{Index: c.index, Iteration: c.iter, Sub: c.sub, Block: b.SubBlocks[c.sub]}
		c.sub++
		return s, true
	}
	return Step{}, false
}
