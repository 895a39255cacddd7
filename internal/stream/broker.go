package stream

import (
	"context"
	"errors"
	"sync"

	"github.com/thruflo/stagehand/internal/logging"
)

// ErrBrokerClosed is returned when waiting on a broker that has been closed.
var ErrBrokerClosed = errors.New("broker closed")

// DefaultBacklog is how many recent events a Broker keeps for late
// subscribers.
const DefaultBacklog = 1024

// Broker fans published events out to subscribers. It assigns sequence
// numbers on publish and keeps a bounded backlog so a subscriber can catch
// up from a known sequence number.
type Broker struct {
	// mu protects the sequence counter, backlog and closed state
	mu sync.Mutex

	// nextSeq is the next sequence number to assign (1-based)
	nextSeq uint64

	// backlog holds the most recent events, oldest first
	backlog []*Event
	limit   int

	closed bool

	// skipped counts events subscribers missed because they fell out of
	// the backlog
	skipped uint64
	log     *logging.Logger

	// longPoll notifies subscribers of new events
	longPoll *longPollManager
}

// longPollManager manages channels waiting for new events.
type longPollManager struct {
	mu      sync.Mutex
	waiters []chan struct{}
}

func (lp *longPollManager) notify() {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	for _, ch := range lp.waiters {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (lp *longPollManager) register(ch chan struct{}) {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	lp.waiters = append(lp.waiters, ch)
}

func (lp *longPollManager) unregister(ch chan struct{}) {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	for i, w := range lp.waiters {
		if w == ch {
			lp.waiters = append(lp.waiters[:i], lp.waiters[i+1:]...)
			break
		}
	}
}

// NewBroker creates a Broker keeping up to backlog events; a non-positive
// value selects DefaultBacklog.
func NewBroker(backlog int) *Broker {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	return &Broker{
		nextSeq:  1,
		limit:    backlog,
		log:      logging.With("component", "broker"),
		longPoll: &longPollManager{},
	}
}

// SetLogger replaces the logger used to report subscriber gaps.
func (b *Broker) SetLogger(l *logging.Logger) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.log = l
}

// Skipped returns how many events subscribers have missed in total because
// the events had left the backlog before they were delivered.
func (b *Broker) Skipped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.skipped
}

func (b *Broker) noteGap(want, got uint64) {
	b.mu.Lock()
	b.skipped += got - want
	log := b.log
	b.mu.Unlock()
	log.Warn("subscriber fell behind the backlog", "from_seq", want, "resumed_at", got, "missed", got-want)
}

// Publish assigns the next sequence number to event and delivers it.
// Publishing to a closed broker is a no-op.
func (b *Broker) Publish(event *Event) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	event.Seq = b.nextSeq
	b.nextSeq++
	b.backlog = append(b.backlog, event)
	if len(b.backlog) > b.limit {
		b.backlog = append([]*Event(nil), b.backlog[len(b.backlog)-b.limit:]...)
	}
	b.mu.Unlock()

	b.longPoll.notify()
}

// Read returns the retained events with sequence number >= fromSeq.
func (b *Broker) Read(fromSeq uint64) []*Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	var events []*Event
	for _, e := range b.backlog {
		if e.Seq >= fromSeq {
			events = append(events, e)
		}
	}
	return events
}

// Subscribe returns a channel that receives events as they are published,
// starting with retained events from fromSeq (inclusive); use 0 for
// everything retained, or LastSeq()+1 for new events only. The channel is
// closed when ctx is cancelled or the broker is closed. Events that leave the
// backlog before delivery are skipped and logged at WARN; fromSeq 0 never
// counts as a gap.
func (b *Broker) Subscribe(ctx context.Context, fromSeq uint64) <-chan *Event {
	ch := make(chan *Event, 100)

	notifyCh := make(chan struct{}, 1)
	b.longPoll.register(notifyCh)

	go func() {
		defer close(ch)
		defer b.longPoll.unregister(notifyCh)

		nextSeq := fromSeq
		checkGap := fromSeq != 0
		if nextSeq == 0 {
			nextSeq = 1
		}

		for {
			events := b.Read(nextSeq)
			if len(events) > 0 && checkGap && events[0].Seq > nextSeq {
				b.noteGap(nextSeq, events[0].Seq)
			}
			checkGap = true
			for _, event := range events {
				select {
				case <-ctx.Done():
					return
				case ch <- event:
					nextSeq = event.Seq + 1
				}
			}
			if b.Closed() {
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-notifyCh:
			}
		}
	}()

	return ch
}

// LastSeq returns the sequence number of the last event published,
// or 0 if nothing has been published.
func (b *Broker) LastSeq() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nextSeq - 1
}

// Closed reports whether Close has been called.
func (b *Broker) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Close stops delivery; subscribers drain what is retained and their
// channels are closed. It is safe to call Close multiple times.
func (b *Broker) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.longPoll.notify()
}
