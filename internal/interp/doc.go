// Package interp runs one sprite's script.
//
// An Interpreter owns a sprite's mutable state (position, heading, speech
// bubbles, animation tag) and executes a block list against it one block at
// a time. Execution is a small state machine: a cursor over the block list
// (top-level index, repeat iteration, sub-block index) advanced by a single
// driver loop, with at most one pending timer per sprite. The only
// suspension points are the per-block timed waits.
//
// Lifecycle of an activation:
//   - Start (async) or Run (sync) marks the interpreter running and assigns a
//     run id; a second activation while one is in flight is refused.
//   - Every state mutation is published through Options.OnChange before the
//     block's suspension begins.
//   - A block whose effect panics is logged and treated as a no-op.
//   - Options.OnDone fires exactly once per activation, after the running
//     flag is cleared, with ReasonCompleted or ReasonCancelled.
//
// Cancel and Reset invalidate the current run token. Every continuation
// checks the token before mutating state, so a cancelled run can never
// apply further changes even if its goroutine has not yet observed the
// cancellation.
package interp
