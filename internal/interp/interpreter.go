package interp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thruflo/stagehand/internal/block"
	"github.com/thruflo/stagehand/internal/geom"
	"github.com/thruflo/stagehand/internal/logging"
)

// ErrAlreadyRunning is returned by Run when an activation is in flight.
var ErrAlreadyRunning = errors.New("interpreter already running")

// Interpreter executes block lists for one sprite.
type Interpreter struct {
	id   int
	opts Options
	log  *logging.Logger

	mu      sync.Mutex
	state   State
	running bool
	token   uint64
	runID   string
	cancel  context.CancelFunc
}

// run is the token-bound context of one activation.
type run struct {
	id     string
	token  uint64
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates an idle interpreter for sprite id starting from initial.
func New(id int, initial State, opts Options) *Interpreter {
	opts = opts.withDefaults()
	if opts.NewRunID == nil {
		opts.NewRunID = uuid.NewString
	}
	return &Interpreter{
		id:    id,
		opts:  opts,
		log:   opts.Logger.With("sprite", id),
		state: initial,
	}
}

// ID returns the sprite id this interpreter belongs to.
func (in *Interpreter) ID() int {
	return in.id
}

// State returns a copy of the current state.
func (in *Interpreter) State() State {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.state
}

// Running reports whether an activation is in flight.
func (in *Interpreter) Running() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.running
}

// RunID returns the id of the in-flight activation, or "".
func (in *Interpreter) RunID() string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.runID
}

// SetTiming replaces the timings used by activations started afterwards.
func (in *Interpreter) SetTiming(t Timing) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.opts.Timing = t
}

// Start begins executing blocks in a new goroutine. It returns false, and
// does nothing, if an activation is already in flight.
func (in *Interpreter) Start(ctx context.Context, blocks []block.Block) (string, bool) {
	r, timing, ok := in.begin(ctx)
	if !ok {
		return "", false
	}
	go in.drive(r, timing, block.CloneList(blocks))
	return r.id, true
}

// Run executes blocks and returns when the activation ends.
func (in *Interpreter) Run(ctx context.Context, blocks []block.Block) (Result, error) {
	r, timing, ok := in.begin(ctx)
	if !ok {
		return Result{SpriteID: in.id}, ErrAlreadyRunning
	}
	return in.drive(r, timing, block.CloneList(blocks)), nil
}

func (in *Interpreter) begin(parent context.Context) (*run, Timing, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.running {
		return nil, Timing{}, false
	}

	ctx, cancel := context.WithCancel(parent)
	in.token++
	in.running = true
	in.runID = in.opts.NewRunID()
	in.cancel = cancel

	return &run{id: in.runID, token: in.token, ctx: ctx, cancel: cancel}, in.opts.Timing, true
}

// Cancel aborts the in-flight activation, if any, and clears the speech
// bubbles and animation tag. It does not publish a change; the owner is
// expected to resynchronise from State or Reset.
func (in *Interpreter) Cancel() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.invalidateLocked()
}

// Reset cancels any activation and replaces the state.
func (in *Interpreter) Reset(st State) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.invalidateLocked()
	in.state = st
}

// Place moves an idle sprite, e.g. when it is dragged. It is refused while
// an activation is in flight.
func (in *Interpreter) Place(p geom.Point) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.running {
		return false
	}
	in.state.Position = p
	return true
}

func (in *Interpreter) invalidateLocked() {
	if in.running {
		in.token++
		in.running = false
		in.runID = ""
		if in.cancel != nil {
			in.cancel()
			in.cancel = nil
		}
	}
	in.state.SayText = ""
	in.state.ThinkText = ""
	in.state.Animation = ""
}

func (in *Interpreter) current(r *run) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.token == r.token && in.running
}

// drive is the single driver loop of one activation.
func (in *Interpreter) drive(r *run, timing Timing, blocks []block.Block) (res Result) {
	res = Result{SpriteID: in.id, RunID: r.id, Reason: ReasonCompleted}
	log := in.log.With("run", r.id)
	log.Debug("run started", "blocks", len(blocks))

	defer func() {
		if res.Reason == ReasonCancelled {
			// Cancelled from the parent context: still ours, so tidy up.
			in.mutate(r, "", clearTransient)
		}
		in.release(r)
		log.Debug("run finished", "reason", res.Reason, "steps", res.Steps, "faults", res.Faults)
		if in.opts.OnDone != nil {
			in.opts.OnDone(res)
		}
	}()

	cur := newCursor(blocks, in.opts.EmptyRepeat)
	for {
		if r.ctx.Err() != nil || !in.current(r) {
			res.Reason = ReasonCancelled
			return res
		}

		step, ok := cur.next()
		if !ok {
			return res
		}
		res.Steps++

		pause, after, faulted := in.apply(r, timing, step, log)
		if faulted {
			res.Faults++
		}
		if pause > 0 && !sleep(r.ctx, pause) {
			res.Reason = ReasonCancelled
			return res
		}
		if after != nil {
			in.mutate(r, step.Block.Kind, after)
		}
	}
}

func (in *Interpreter) release(r *run) {
	in.mu.Lock()
	if in.token == r.token && in.running {
		in.running = false
		in.runID = ""
		in.cancel = nil
	}
	in.mu.Unlock()
	r.cancel()
}

// apply performs one step's effect and returns the suspension to observe and
// an optional mutation to apply once it has elapsed.
func (in *Interpreter) apply(r *run, timing Timing, s Step, log *logging.Logger) (pause time.Duration, after func(*State), faulted bool) {
	defer func() {
		if p := recover(); p != nil {
			log.Warn("block failed",
				"index", s.Index,
				"kind", string(s.Block.Kind),
				"error", fmt.Sprint(p))
			pause, after, faulted = 0, nil, true
		}
	}()

	if in.opts.OnStep != nil {
		in.opts.OnStep(s)
	}

	b := s.Block

	if s.Nudge {
		in.mutate(r, block.KindRepeat, func(st *State) {
			st.Position.X += NudgeDistance
		})
		return timing.scaled(timing.Nudge), nil, false
	}

	if s.Nested() && !b.Kind.Motion() {
		return 0, nil, false
	}

	switch b.Kind {
	case block.KindMove:
		in.mutate(r, b.Kind, func(st *State) {
			if in.opts.Motion == MotionNaive {
				st.Position.X += b.Value
				return
			}
			st.Position = st.Position.Add(geom.Heading(st.Heading, b.Value))
		})
		return timing.scaled(timing.Motion), nil, false

	case block.KindTurn:
		in.mutate(r, b.Kind, func(st *State) {
			st.Heading += b.Value
		})
		return timing.scaled(timing.Motion), nil, false

	case block.KindGoto:
		in.mutate(r, b.Kind, func(st *State) {
			st.Position = geom.Point{X: b.X, Y: b.Y}
		})
		return timing.scaled(timing.Motion), nil, false

	case block.KindWait:
		d := secondsToDuration(b.Time)
		if d < timing.MinWait {
			d = timing.MinWait
		}
		return timing.scaled(d), nil, false

	case block.KindSay, block.KindThink:
		kind, msg := b.Kind, b.Message
		in.mutate(r, kind, func(st *State) {
			st.SayText, st.ThinkText = "", ""
			if kind == block.KindSay {
				st.SayText = msg
			} else {
				st.ThinkText = msg
			}
		})
		return timing.scaled(secondsToDuration(b.Time)), func(st *State) {
			if kind == block.KindSay {
				st.SayText = ""
			} else {
				st.ThinkText = ""
			}
		}, false

	case block.KindAnimation:
		name := b.AnimationName
		in.mutate(r, b.Kind, func(st *State) {
			st.Animation = name
		})
		return timing.scaled(secondsToDuration(b.Duration)), func(st *State) {
			st.Animation = ""
		}, false

	default:
		log.Debug("skipping unknown block", "index", s.Index, "kind", string(b.Kind))
		return 0, nil, false
	}
}

// mutate applies fn to the state if r is still the current activation and
// publishes the result. It reports whether the change was applied.
func (in *Interpreter) mutate(r *run, cause block.Kind, fn func(*State)) bool {
	in.mu.Lock()
	if in.token != r.token {
		in.mu.Unlock()
		return false
	}
	fn(&in.state)
	snapshot := in.state
	in.mu.Unlock()

	if in.opts.OnChange != nil {
		in.opts.OnChange(Change{SpriteID: in.id, RunID: r.id, Cause: cause, State: snapshot})
	}
	return true
}

func clearTransient(st *State) {
	st.SayText, st.ThinkText, st.Animation = "", "", ""
}

// sleep waits for d or until ctx is done. It reports whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
