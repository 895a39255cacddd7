// Package tui is a terminal viewer for a running stage. It draws sprites on
// a character grid scaled from stage coordinates and forwards run and reset
// requests to whatever drives the stage, local or remote.
package tui

import (
	"context"
	"fmt"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/thruflo/stagehand/internal/logging"
	"github.com/thruflo/stagehand/internal/stream"
)

// Action represents a user action from the TUI.
type Action int

const (
	ActionNone Action = iota
	ActionRun
	ActionReset
	ActionQuit
)

// String returns the string representation of the action.
func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionRun:
		return "run"
	case ActionReset:
		return "reset"
	case ActionQuit:
		return "quit"
	default:
		return "unknown"
	}
}

// ActionEvent is sent when the user triggers an action.
type ActionEvent struct {
	Action Action
	Err    error // set when the controls rejected the action
}

// Controls is what the viewer can ask of the stage it watches.
// stream.StreamClient satisfies it.
type Controls interface {
	Run(ctx context.Context) error
	Reset(ctx context.Context) error
}

// TUI draws a stage on a tcell screen.
type TUI struct {
	screen   tcell.Screen
	controls Controls
	log      *logging.Logger

	mu    sync.Mutex
	board *board

	actionCh chan ActionEvent
}

// New creates a TUI over an initialised screen. controls may be nil for a
// view-only session. initial seeds the board before any event arrives.
func New(screen tcell.Screen, controls Controls, initial []stream.SpriteEvent) *TUI {
	return &TUI{
		screen:   screen,
		controls: controls,
		log:      logging.With("component", "tui"),
		board:    newBoard(initial),
		actionCh: make(chan ActionEvent, 10),
	}
}

// NewScreen creates and initialises the terminal screen. Callers Fini it.
func NewScreen() (tcell.Screen, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("failed to create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialise screen: %w", err)
	}
	screen.HideCursor()
	return screen, nil
}

// Actions returns a channel that receives user actions. Sends never block;
// actions are dropped when nobody is reading.
func (t *TUI) Actions() <-chan ActionEvent {
	return t.actionCh
}

// Sprites returns the sprites currently on the board, ordered by id.
func (t *TUI) Sprites() []stream.SpriteEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.board.ordered()
}

// Status returns the footer message.
func (t *TUI) Status() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.board.message
}

// Apply folds a stream event into the board and redraws.
func (t *TUI) Apply(e *stream.Event) {
	t.mu.Lock()
	t.board.apply(e)
	t.mu.Unlock()
	t.Draw()
}

// Run starts the TUI event loop. It returns when the context is cancelled or
// the user quits. A closed events channel leaves the last frame on screen
// until the user quits.
func (t *TUI) Run(ctx context.Context, events <-chan *stream.Event) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// PollEvent returns nil once the screen is finalised.
	termCh := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := t.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case termCh <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	t.Draw()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case e, ok := <-events:
			if !ok {
				events = nil
				t.mu.Lock()
				t.board.message = "stream closed"
				t.mu.Unlock()
				t.Draw()
				continue
			}
			t.Apply(e)

		case ev := <-termCh:
			if t.handleEvent(ctx, ev) == ActionQuit {
				return nil
			}
		}
	}
}

// handleEvent processes one terminal event and returns the action it
// triggered.
func (t *TUI) handleEvent(ctx context.Context, ev tcell.Event) Action {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		t.screen.Sync()
		t.Draw()
		return ActionNone
	case *tcell.EventKey:
		action := keyAction(ev)
		if action == ActionNone {
			return ActionNone
		}
		err := t.perform(ctx, action)
		select {
		case t.actionCh <- ActionEvent{Action: action, Err: err}:
		default:
		}
		return action
	}
	return ActionNone
}

func keyAction(ev *tcell.EventKey) Action {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return ActionQuit
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q', 'Q':
			return ActionQuit
		case 'r', 'R', ' ':
			return ActionRun
		case 'x', 'X':
			return ActionReset
		}
	}
	return ActionNone
}

func (t *TUI) perform(ctx context.Context, action Action) error {
	if t.controls == nil || action == ActionQuit {
		return nil
	}

	var err error
	switch action {
	case ActionRun:
		err = t.controls.Run(ctx)
	case ActionReset:
		err = t.controls.Reset(ctx)
	}
	if err != nil {
		t.log.Warn("action failed", "action", action, "error", err)
		t.mu.Lock()
		t.board.message = fmt.Sprintf("%s failed: %v", action, err)
		t.mu.Unlock()
		t.Draw()
	}
	return err
}
