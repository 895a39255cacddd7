package tui

import (
	"fmt"
	"sort"

	"github.com/thruflo/stagehand/internal/stream"
)

// board is the viewer's picture of the stage, rebuilt from stream events.
type board struct {
	sprites   map[int]stream.SpriteEvent
	policy    string
	colliding int
	running   map[int]string // sprite id -> run id
	lastSeq   uint64
	message   string
}

func newBoard(initial []stream.SpriteEvent) *board {
	b := &board{
		sprites: make(map[int]stream.SpriteEvent, len(initial)),
		running: make(map[int]string),
	}
	for _, s := range initial {
		if !s.Removed {
			b.sprites[s.ID] = s
		}
	}
	return b
}

func (b *board) ordered() []stream.SpriteEvent {
	out := make([]stream.SpriteEvent, 0, len(b.sprites))
	for _, s := range b.sprites {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// apply folds e into the board. Events that fail to decode are skipped.
func (b *board) apply(e *stream.Event) {
	if e.Seq > b.lastSeq {
		b.lastSeq = e.Seq
	}

	switch e.Type {
	case stream.MessageTypeSprite:
		s, err := e.SpriteData()
		if err != nil {
			return
		}
		if s.Removed {
			delete(b.sprites, s.ID)
			delete(b.running, s.ID)
			return
		}
		b.sprites[s.ID] = *s

	case stream.MessageTypeCollision:
		c, err := e.CollisionData()
		if err != nil {
			return
		}
		b.policy = c.Policy
		b.colliding = 0
		for _, p := range c.Pairs {
			if p.Colliding {
				b.colliding++
			}
		}

	case stream.MessageTypeRun:
		r, err := e.RunData()
		if err != nil {
			return
		}
		b.running = make(map[int]string, len(r.Runs))
		for id, run := range r.Runs {
			b.running[id] = run
		}
		b.message = fmt.Sprintf("running %d sprite(s)", len(r.Runs))

	case stream.MessageTypeDone:
		d, err := e.DoneData()
		if err != nil {
			return
		}
		if b.running[d.SpriteID] != d.RunID {
			return
		}
		delete(b.running, d.SpriteID)
		b.message = fmt.Sprintf("#%d %s after %d step(s)", d.SpriteID, d.Reason, d.Steps)
		if d.Faults > 0 {
			b.message += fmt.Sprintf(", %d fault(s)", d.Faults)
		}

	case stream.MessageTypeReset:
		r, err := e.ResetData()
		if err != nil {
			return
		}
		b.running = make(map[int]string)
		b.message = "reset"
		if r.ClearedBlocks {
			b.message = "reset, scripts cleared"
		}
	}
}
