package testutil

import (
	"time"

	"github.com/thruflo/stagehand/internal/block"
)

// SampleConfigYAML is a complete config with fast timings.
const SampleConfigYAML = `timing:
  motion_ms: 5
  nudge_ms: 5
  min_wait_ms: 5
  scale: 1.0
motion: heading
repeat:
  empty: nudge
collision:
  policy: all-pairs
  box_size: 60
  flash_ms: 50
spawn:
  mode: fixed
  first_x: 100
  first_y: 100
  x: 200
  y: 200
reset:
  clear_blocks: false
log:
  level: error
`

// SampleSceneYAML places two sprites far apart, the second one the hero.
const SampleSceneYAML = `sprites:
  - x: 0
    y: 0
    blocks:
      - type: move
        value: 10
      - type: say
        message: Hello!
        time: 0.01
  - x: 300
    y: 0
    hero: true
    blocks:
      - type: repeat
        count: 3
        subBlocks:
          - type: move
            value: 5
`

// SampleProgram returns one block of every kind, with palette defaults.
// Returns a new slice each time to prevent test interference.
func SampleProgram() []block.Block {
	return block.Palette()
}

// SampleRepeat returns repeat{3, [move 5]}.
func SampleRepeat() []block.Block {
	return []block.Block{block.Repeat(3, block.Move(5))}
}

// FastTiming returns motion, nudge and minimum-wait suspensions short
// enough for unit tests.
func FastTiming() (motion, nudge, minWait time.Duration) {
	return 5 * time.Millisecond, 5 * time.Millisecond, 5 * time.Millisecond
}
