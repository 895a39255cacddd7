// Package stage coordinates a collection of sprites: it owns their block
// lists and interpreters, fans a run out to every sprite, aggregates their
// done signals, applies the collision policy and implements reset.
//
// All sprite state lives in the Stage's table behind one mutex. Interpreters
// report back through callbacks that take that mutex; the stage never waits
// on an interpreter while holding it, so the two locks cannot deadlock.
package stage

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/thruflo/stagehand/internal/block"
	"github.com/thruflo/stagehand/internal/geom"
	"github.com/thruflo/stagehand/internal/interp"
	"github.com/thruflo/stagehand/internal/logging"
	"github.com/thruflo/stagehand/internal/stream"
)

// entry is the stage's record of one sprite.
type entry struct {
	id     int
	blocks []block.Block
	origin geom.Point
	in     *interp.Interpreter

	// state mirrors the interpreter's state as last published.
	state  interp.State
	active bool
	runID  string

	hero      bool
	colliding bool
	flash     *time.Timer
	flashGen  uint64
}

// Stage is the sprite collection and execution coordinator.
type Stage struct {
	opts   Options
	log    *logging.Logger
	broker *stream.Broker

	mu       sync.Mutex
	sprites  map[int]*entry
	selected int
	pairs    []CollisionPair
	idle     chan struct{}
	busy     bool
	closed   bool
}

// New creates a stage holding opts.Seeds, or a single sprite at
// opts.Spawn.First when there are none. The first sprite is selected.
func New(opts Options) *Stage {
	opts = opts.withDefaults()

	idle := make(chan struct{})
	close(idle)

	s := &Stage{
		opts:    opts,
		log:     opts.Logger,
		broker:  stream.NewBroker(opts.Backlog),
		sprites: make(map[int]*entry),
		idle:    idle,
	}

	s.broker.SetLogger(opts.Logger.With("component", "broker"))

	seeds := opts.Seeds
	if len(seeds) == 0 {
		seeds = []Seed{{Position: opts.Spawn.First}}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, seed := range seeds {
		e := s.addLocked(seed.Position)
		e.blocks = normalizeList(seed.Blocks)
		if seed.Hero {
			for _, other := range s.sprites {
				other.hero = false
			}
			e.hero = true
		}
	}
	s.selected = s.idsLocked()[0]
	s.heroCollisionsLocked(nil)

	return s
}

func normalizeList(blocks []block.Block) []block.Block {
	out := make([]block.Block, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, block.Normalize(b))
	}
	return out
}

// Broker returns the broker every stage event is published to.
func (s *Stage) Broker() *stream.Broker {
	return s.broker
}

// Subscribe returns the stage's events from now on. The channel closes
// when ctx is done or the stage is closed.
func (s *Stage) Subscribe(ctx context.Context) <-chan *stream.Event {
	return s.broker.Subscribe(ctx, s.broker.LastSeq()+1)
}

// Policy returns the collision policy in force.
func (s *Stage) Policy() CollisionPolicy {
	return s.opts.Collision
}

// BoxSize returns the side of a sprite's bounding box.
func (s *Stage) BoxSize() float64 {
	return s.opts.BoxSize
}

// SetTiming replaces the timing used by runs started afterwards.
func (s *Stage) SetTiming(t interp.Timing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts.Interp.Timing = t
	for _, e := range s.sprites {
		e.in.SetTiming(t)
	}
}

func (s *Stage) addLocked(p geom.Point) *entry {
	id := 1
	for existing := range s.sprites {
		if existing >= id {
			id = existing + 1
		}
	}

	io := s.opts.Interp
	io.Logger = s.log
	io.OnChange = s.onChange
	io.OnDone = s.onDone

	e := &entry{
		id:     id,
		blocks: []block.Block{},
		origin: p,
		state:  interp.State{Position: p},
	}
	e.in = interp.New(id, e.state, io)
	s.sprites[id] = e
	return e
}

func (s *Stage) spawnPoint() geom.Point {
	sp := s.opts.Spawn
	if sp.Mode != SpawnRandom {
		return sp.At
	}
	span := sp.Max - sp.Min
	return geom.Point{
		X: sp.Min + s.opts.Rand()*span,
		Y: sp.Min + s.opts.Rand()*span,
	}
}

// Add creates an inactive sprite with an empty block list and id one
// greater than the largest existing id. Selection is unchanged.
func (s *Stage) Add() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.addLocked(s.spawnPoint())
	s.log.Debug("sprite added", "sprite", e.id, "x", e.origin.X, "y", e.origin.Y)

	dirty := map[int]bool{e.id: true}
	s.heroCollisionsLocked(dirty)
	s.flushLocked(dirty)
	return s.snapshotLocked(e)
}

// Remove deletes an inactive sprite. It is refused for the last sprite.
// Removing the selected sprite selects the remaining sprite with the
// lowest id.
func (s *Stage) Remove(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sprites[id]
	if !ok || e.active || len(s.sprites) <= 1 {
		return false
	}

	s.stopFlashLocked(e)
	e.in.Cancel()
	delete(s.sprites, id)
	s.publishLocked(stream.MessageTypeSprite, stream.SpriteEvent{ID: id, Removed: true})

	dirty := map[int]bool{}
	if s.selected == id {
		s.selected = s.idsLocked()[0]
		dirty[s.selected] = true
	}
	s.pairs = slices.DeleteFunc(s.pairs, func(p CollisionPair) bool { return p.A == id || p.B == id })
	s.heroCollisionsLocked(dirty)
	s.flushLocked(dirty)
	return true
}

// Select makes id the selected sprite.
func (s *Stage) Select(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sprites[id]; !ok {
		return false
	}
	dirty := map[int]bool{s.selected: true, id: true}
	s.selected = id
	s.flushLocked(dirty)
	return true
}

// ToggleHero makes id the only hero, or clears it if it already is.
func (s *Stage) ToggleHero(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sprites[id]
	if !ok {
		return false
	}

	dirty := map[int]bool{id: true}
	if e.hero {
		e.hero = false
	} else {
		for _, other := range s.sprites {
			if other.hero {
				other.hero = false
				dirty[other.id] = true
			}
		}
		e.hero = true
	}
	s.heroCollisionsLocked(dirty)
	s.flushLocked(dirty)
	return true
}

// editSelected applies fn to the selected sprite's block list when the
// sprite is inactive. fn reports whether it changed anything.
func (s *Stage) editSelected(fn func(e *entry) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sprites[s.selected]
	if !ok || e.active {
		return false
	}
	if !fn(e) {
		return false
	}
	s.flushLocked(map[int]bool{e.id: true})
	return true
}

// DropBlock appends b to the selected sprite's block list.
func (s *Stage) DropBlock(b block.Block) bool {
	b = block.Normalize(b)
	return s.editSelected(func(e *entry) bool {
		e.blocks = append(e.blocks, b)
		return true
	})
}

// ReorderBlocks moves the block at from so that it ends up at index to.
// Both indices must be in range.
func (s *Stage) ReorderBlocks(from, to int) bool {
	return s.editSelected(func(e *entry) bool {
		n := len(e.blocks)
		if from < 0 || from >= n || to < 0 || to >= n {
			return false
		}
		moved := e.blocks[from]
		blocks := slices.Delete(slices.Clone(e.blocks), from, from+1)
		e.blocks = slices.Insert(blocks, to, moved)
		return true
	})
}

// RemoveBlock deletes the block at index i of the selected sprite.
func (s *Stage) RemoveBlock(i int) bool {
	return s.editSelected(func(e *entry) bool {
		if i < 0 || i >= len(e.blocks) {
			return false
		}
		e.blocks = slices.Delete(slices.Clone(e.blocks), i, i+1)
		return true
	})
}

// UpdateBlock replaces the block at index i of the selected sprite.
func (s *Stage) UpdateBlock(i int, b block.Block) bool {
	b = block.Normalize(b)
	return s.editSelected(func(e *entry) bool {
		if i < 0 || i >= len(e.blocks) {
			return false
		}
		blocks := slices.Clone(e.blocks)
		blocks[i] = b
		e.blocks = blocks
		return true
	})
}

// AppendSubBlock adds b to the repeat at index i of the selected sprite.
// Repeats cannot be nested.
func (s *Stage) AppendSubBlock(i int, b block.Block) bool {
	b = block.Normalize(b)
	if b.Kind == block.KindRepeat {
		return false
	}
	return s.editSelected(func(e *entry) bool {
		if i < 0 || i >= len(e.blocks) || e.blocks[i].Kind != block.KindRepeat {
			return false
		}
		blocks := block.CloneList(e.blocks)
		blocks[i].SubBlocks = append(blocks[i].SubBlocks, b)
		e.blocks = blocks
		return true
	})
}

// SetBlocks replaces the block list of an inactive sprite.
func (s *Stage) SetBlocks(id int, blocks []block.Block) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sprites[id]
	if !ok || e.active {
		return false
	}
	e.blocks = normalizeList(blocks)
	s.flushLocked(map[int]bool{id: true})
	return true
}

// UpdatePosition moves an inactive sprite, as when it is dragged. The
// sprite's origin is not changed.
func (s *Stage) UpdatePosition(id int, p geom.Point) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sprites[id]
	if !ok || e.active || !e.in.Place(p) {
		return false
	}
	e.state.Position = p

	dirty := map[int]bool{id: true}
	s.heroCollisionsLocked(dirty)
	s.flushLocked(dirty)
	return true
}

// Run marks every inactive sprite active and starts its interpreter on a
// copy of its block list. It returns the run id of each sprite started.
// Runs are cancelled when ctx is done.
func (s *Stage) Run(ctx context.Context) map[int]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	runs := make(map[int]string)
	if s.closed {
		return runs
	}

	for _, id := range s.idsLocked() {
		e := s.sprites[id]
		if e.active {
			continue
		}
		runID, ok := e.in.Start(ctx, e.blocks)
		if !ok {
			continue
		}
		e.active = true
		e.runID = runID
		runs[id] = runID
	}

	if len(runs) == 0 {
		return runs
	}
	if !s.busy {
		s.busy = true
		s.idle = make(chan struct{})
	}

	s.log.Info("run started", "sprites", len(runs))
	s.publishLocked(stream.MessageTypeRun, stream.RunEvent{Runs: runs})

	dirty := make(map[int]bool, len(runs))
	for id := range runs {
		dirty[id] = true
	}
	s.flushLocked(dirty)
	return runs
}

// Reset cancels every run and pending collision flash and returns each
// sprite to its origin with heading 0, inactive, with no speech bubble,
// animation or collision flag. Block lists are kept unless configured
// otherwise.
func (s *Stage) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	dirty := make(map[int]bool, len(s.sprites))
	for _, id := range s.idsLocked() {
		e := s.sprites[id]
		s.stopFlashLocked(e)

		st := interp.State{Position: e.origin}
		e.in.Reset(st)
		e.state = st
		e.colliding = false

		if e.active {
			s.publishLocked(stream.MessageTypeDone, stream.DoneEvent{
				SpriteID: id,
				RunID:    e.runID,
				Reason:   interp.ReasonCancelled.String(),
			})
		}
		e.active = false
		e.runID = ""

		if s.opts.ClearBlocksOnReset {
			e.blocks = []block.Block{}
		}
		dirty[id] = true
	}

	s.pairs = nil
	s.markIdleLocked()
	s.heroCollisionsLocked(nil)

	s.log.Info("stage reset", "sprites", len(s.sprites), "cleared_blocks", s.opts.ClearBlocksOnReset)
	s.publishLocked(stream.MessageTypeReset, stream.ResetEvent{ClearedBlocks: s.opts.ClearBlocksOnReset})
	s.flushLocked(dirty)
}

// Wait blocks until no sprite is active or ctx is done.
func (s *Stage) Wait(ctx context.Context) error {
	s.mu.Lock()
	idle := s.idle
	s.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Active reports whether any sprite is running.
func (s *Stage) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Close cancels every run and timer and closes the broker.
func (s *Stage) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for _, e := range s.sprites {
		s.stopFlashLocked(e)
		e.in.Cancel()
		e.active = false
		e.runID = ""
	}
	s.markIdleLocked()
	s.mu.Unlock()

	s.broker.Close()
}

// Snapshots returns every sprite in id order.
func (s *Stage) Snapshots() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.idsLocked()
	out := make([]Snapshot, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.snapshotLocked(s.sprites[id]))
	}
	return out
}

// Sprite returns the sprite with the given id.
func (s *Stage) Sprite(id int) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sprites[id]
	if !ok {
		return Snapshot{}, false
	}
	return s.snapshotLocked(e), true
}

// Selected returns the selected sprite.
func (s *Stage) Selected() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(s.sprites[s.selected])
}

// Collisions returns the latest collision status list.
func (s *Stage) Collisions() []CollisionPair {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.pairs)
}

func (s *Stage) idsLocked() []int {
	ids := make([]int, 0, len(s.sprites))
	for id := range s.sprites {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (s *Stage) snapshotLocked(e *entry) Snapshot {
	return Snapshot{
		ID:        e.id,
		Blocks:    block.CloneList(e.blocks),
		Position:  e.state.Position,
		Heading:   e.state.Heading,
		Active:    e.active,
		Hero:      e.hero,
		Selected:  e.id == s.selected,
		SayText:   e.state.SayText,
		ThinkText: e.state.ThinkText,
		Animation: e.state.Animation,
		Colliding: e.colliding,
	}
}

func (s *Stage) publishLocked(t stream.MessageType, data any) {
	event, err := stream.NewEvent(t, data)
	if err != nil {
		s.log.Error("failed to build event", "type", string(t), "error", err)
		return
	}
	s.broker.Publish(event)
}

// flushLocked publishes a sprite event for every id in dirty, in id order.
func (s *Stage) flushLocked(dirty map[int]bool) {
	ids := make([]int, 0, len(dirty))
	for id := range dirty {
		if _, ok := s.sprites[id]; ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	for _, id := range ids {
		s.publishLocked(stream.MessageTypeSprite, s.snapshotLocked(s.sprites[id]).Event())
	}
}

func (s *Stage) markIdleLocked() {
	if s.busy {
		s.busy = false
		close(s.idle)
	}
}

func (s *Stage) anyActiveLocked() bool {
	for _, e := range s.sprites {
		if e.active {
			return true
		}
	}
	return false
}

// onChange receives every interpreter mutation.
func (s *Stage) onChange(c interp.Change) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sprites[c.SpriteID]
	if !ok || !e.active || e.runID != c.RunID {
		return
	}
	e.state = c.State

	dirty := map[int]bool{e.id: true}
	s.heroCollisionsLocked(dirty)
	s.flushLocked(dirty)
}

// onDone receives the end of every activation.
func (s *Stage) onDone(res interp.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sprites[res.SpriteID]
	if !ok || !e.active || e.runID != res.RunID {
		return
	}
	e.active = false
	e.runID = ""
	e.state = e.in.State()

	s.publishLocked(stream.MessageTypeDone, stream.DoneEvent{
		SpriteID: res.SpriteID,
		RunID:    res.RunID,
		Reason:   res.Reason.String(),
		Steps:    res.Steps,
		Faults:   res.Faults,
	})

	dirty := map[int]bool{e.id: true}
	if !s.anyActiveLocked() {
		if s.opts.Collision == CollisionAllPairs {
			s.resolveAllPairsLocked(dirty)
		}
		s.markIdleLocked()
	}
	s.flushLocked(dirty)
}
