package stream

import (
	"context"
)

// AwaitEvent waits for an event from the broker, at or after fromSeq, for
// which match returns true. Retained events are checked first, so an event
// published before the call is still found.
//
// The function returns the event when found, or an error if the context is
// canceled or the broker closes first.
func AwaitEvent(ctx context.Context, b *Broker, fromSeq uint64, match func(*Event) bool) (*Event, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for event := range b.Subscribe(ctx, fromSeq) {
		if match(event) {
			return event, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, ErrBrokerClosed
}

// AwaitDone waits until a done event has been seen for every sprite id in
// runs (sprite id to run id), ignoring done events of other runs.
func AwaitDone(ctx context.Context, b *Broker, fromSeq uint64, runs map[int]string) ([]DoneEvent, error) {
	pending := make(map[int]string, len(runs))
	for id, run := range runs {
		pending[id] = run
	}

	var done []DoneEvent
	if len(pending) == 0 {
		return done, nil
	}

	_, err := AwaitEvent(ctx, b, fromSeq, func(e *Event) bool {
		if e.Type != MessageTypeDone {
			return false
		}
		d, err := e.DoneData()
		if err != nil || pending[d.SpriteID] != d.RunID {
			return false
		}
		delete(pending, d.SpriteID)
		done = append(done, *d)
		return len(pending) == 0
	})
	return done, err
}
