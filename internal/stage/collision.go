package stage

import (
	"slices"
	"time"

	"github.com/thruflo/stagehand/internal/geom"
	"github.com/thruflo/stagehand/internal/stream"
)

// resolveAllPairsLocked tests every unordered pair in id order. Each
// overlapping pair swaps block lists and both sprites flash. A sprite that
// overlaps several others is swapped once per pair, in order. Callers
// ensure no sprite is active.
func (s *Stage) resolveAllPairsLocked(dirty map[int]bool) {
	ids := s.idsLocked()
	if len(ids) < 2 {
		s.pairs = nil
		return
	}

	var pairs, swapped []CollisionPair
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			a, b := s.sprites[ids[i]], s.sprites[ids[j]]
			hit := geom.IsColliding(a.state.Position, b.state.Position, s.opts.BoxSize)
			pair := CollisionPair{A: a.id, B: b.id, Colliding: hit}
			pairs = append(pairs, pair)
			if !hit {
				continue
			}

			a.blocks, b.blocks = b.blocks, a.blocks
			s.flashLocked(a)
			s.flashLocked(b)
			dirty[a.id], dirty[b.id] = true, true
			swapped = append(swapped, pair)
			s.log.Info("collision swap", "a", a.id, "b", b.id)
		}
	}

	s.pairs = pairs
	s.publishLocked(stream.MessageTypeCollision, stream.CollisionEvent{
		Policy:  string(CollisionAllPairs),
		Pairs:   pairs,
		Swapped: swapped,
	})
}

// heroCollisionsLocked recomputes the hero's status against every other
// sprite. Sprites whose flag changes are added to dirty; a nil dirty
// publishes nothing for them. A collision event is published when the
// status list changes.
func (s *Stage) heroCollisionsLocked(dirty map[int]bool) {
	if s.opts.Collision != CollisionHeroOnly {
		return
	}

	var hero *entry
	for _, e := range s.sprites {
		if e.hero {
			hero = e
		}
	}

	var pairs []CollisionPair
	flagged := make(map[int]bool)
	if hero != nil {
		for _, id := range s.idsLocked() {
			if id == hero.id {
				continue
			}
			other := s.sprites[id]
			hit := geom.IsColliding(hero.state.Position, other.state.Position, s.opts.BoxSize)
			pair := CollisionPair{A: min(hero.id, id), B: max(hero.id, id), Colliding: hit}
			pairs = append(pairs, pair)
			if hit {
				flagged[hero.id], flagged[id] = true, true
			}
		}
	}

	for id, e := range s.sprites {
		if e.colliding != flagged[id] {
			e.colliding = flagged[id]
			if dirty != nil {
				dirty[id] = true
			}
		}
	}

	if slices.Equal(pairs, s.pairs) {
		return
	}
	s.pairs = pairs
	s.publishLocked(stream.MessageTypeCollision, stream.CollisionEvent{
		Policy: string(CollisionHeroOnly),
		Pairs:  pairs,
	})
}

// flashLocked flags e as colliding until the flash duration elapses.
func (s *Stage) flashLocked(e *entry) {
	s.stopFlashLocked(e)
	if s.opts.FlashDuration < 0 {
		return
	}
	e.colliding = true

	id, gen := e.id, e.flashGen
	e.flash = time.AfterFunc(s.opts.FlashDuration, func() {
		s.endFlash(id, gen)
	})
}

func (s *Stage) stopFlashLocked(e *entry) {
	e.flashGen++
	if e.flash != nil {
		e.flash.Stop()
		e.flash = nil
	}
}

func (s *Stage) endFlash(id int, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sprites[id]
	if !ok || e.flashGen != gen || s.opts.Collision != CollisionAllPairs {
		return
	}
	e.flash = nil
	e.colliding = false
	s.flushLocked(map[int]bool{id: true})
}
