package interp

import (
	"math"
	"time"

	"github.com/thruflo/stagehand/internal/block"
	"github.com/thruflo/stagehand/internal/geom"
	"github.com/thruflo/stagehand/internal/logging"
)

// MotionPolicy selects how a move block updates the position.
type MotionPolicy string

const (
	// MotionHeading moves along the accumulated heading: pos += v*(cos θ, sin θ).
	MotionHeading MotionPolicy = "heading"
	// MotionNaive moves along +x only and ignores the heading.
	MotionNaive MotionPolicy = "naive"
)

// EmptyRepeatPolicy selects what a repeat with no sub-blocks does.
type EmptyRepeatPolicy string

const (
	// EmptyRepeatNudge moves the sprite NudgeDistance along +x per iteration.
	EmptyRepeatNudge EmptyRepeatPolicy = "nudge"
	// EmptyRepeatNoop skips the repeat instantly.
	EmptyRepeatNoop EmptyRepeatPolicy = "noop"
)

// NudgeDistance is how far an empty repeat moves the sprite per iteration.
const NudgeDistance = 10.0

// Timing holds the suspension applied after each kind of step.
type Timing struct {
	Motion  time.Duration // after move, turn, goto
	Nudge   time.Duration // after each empty-repeat iteration
	MinWait time.Duration // floor for wait blocks
	Scale   float64       // multiplies every suspension; 0 means 1
}

// DefaultTiming returns the editor's timings.
func DefaultTiming() Timing {
	return Timing{
		Motion:  300 * time.Millisecond,
		Nudge:   200 * time.Millisecond,
		MinWait: 100 * time.Millisecond,
		Scale:   1,
	}
}

func (t Timing) scaled(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	if t.Scale <= 0 || t.Scale == 1 {
		return d
	}
	return clampDuration(float64(d) * t.Scale)
}

func secondsToDuration(s float64) time.Duration {
	if s <= 0 {
		return 0
	}
	return clampDuration(s * float64(time.Second))
}

// clampDuration converts ns to a Duration, saturating instead of
// overflowing.
func clampDuration(ns float64) time.Duration {
	if ns >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(ns)
}

// State is the part of a sprite an interpreter mutates.
type State struct {
	Position  geom.Point `json:"position"`
	Heading   float64    `json:"heading"`
	SayText   string     `json:"say_text,omitempty"`
	ThinkText string     `json:"think_text,omitempty"`
	Animation string     `json:"animation,omitempty"`
}

// Change is published after every state mutation.
type Change struct {
	SpriteID int
	RunID    string
	Cause    block.Kind
	State    State
}

// Reason tells why an activation ended.
type Reason int

const (
	ReasonCompleted Reason = iota
	ReasonCancelled
)

// String returns a human-readable description of the reason.
func (r Reason) String() string {
	switch r {
	case ReasonCompleted:
		return "completed"
	case ReasonCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Result summarises one activation. It is what OnDone receives.
type Result struct {
	SpriteID int
	RunID    string
	Reason   Reason
	Steps    int // steps the cursor produced, including skipped ones
	Faults   int // steps whose effect panicked
}

// Options configures an Interpreter. Zero values take defaults.
type Options struct {
	Timing      Timing
	Motion      MotionPolicy
	EmptyRepeat EmptyRepeatPolicy

	// OnChange receives every state mutation. It is called without the
	// interpreter's lock held and may call back into the interpreter.
	OnChange func(Change)
	// OnDone fires exactly once per activation.
	OnDone func(Result)
	// OnStep is called before each step's effect is applied. A panic raised
	// here is treated like a fault in the block itself.
	OnStep func(Step)

	Logger   *logging.Logger
	NewRunID func() string
}

func (o Options) withDefaults() Options {
	if o.Timing == (Timing{}) {
		o.Timing = DefaultTiming()
	}
	if o.Motion == "" {
		o.Motion = MotionHeading
	}
	if o.EmptyRepeat == "" {
		o.EmptyRepeat = EmptyRepeatNudge
	}
	if o.Logger == nil {
		o.Logger = logging.Default()
	}
	return o
}
