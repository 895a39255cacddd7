package stage

import (
	"math/rand"
	"time"

	"github.com/thruflo/stagehand/internal/block"
	"github.com/thruflo/stagehand/internal/geom"
	"github.com/thruflo/stagehand/internal/interp"
	"github.com/thruflo/stagehand/internal/logging"
	"github.com/thruflo/stagehand/internal/stream"
)

// CollisionPolicy selects when and how collisions are evaluated. A stage
// applies exactly one.
type CollisionPolicy string

const (
	// CollisionAllPairs tests every pair once no sprite is active and swaps
	// the block lists of overlapping sprites.
	CollisionAllPairs CollisionPolicy = "all-pairs"
	// CollisionHeroOnly tests the hero against every other sprite on each
	// position change and only reports the result.
	CollisionHeroOnly CollisionPolicy = "hero-only"
)

// SpawnMode selects where Add places a new sprite.
type SpawnMode string

const (
	SpawnFixed  SpawnMode = "fixed"
	SpawnRandom SpawnMode = "random"
)

// DefaultFlashDuration is how long swapped sprites stay flagged as colliding.
const DefaultFlashDuration = 500 * time.Millisecond

// Spawn configures initial and added sprite positions.
type Spawn struct {
	Mode SpawnMode
	// First is where the sprite of an empty stage starts.
	First geom.Point
	// At is where Add places sprites in fixed mode.
	At geom.Point
	// Min and Max bound both coordinates in random mode: [Min, Max).
	Min, Max float64
}

// DefaultSpawn matches the editor: the first sprite at (100,100), later
// ones at (200,200).
func DefaultSpawn() Spawn {
	return Spawn{
		Mode:  SpawnFixed,
		First: geom.Point{X: 100, Y: 100},
		At:    geom.Point{X: 200, Y: 200},
		Min:   50,
		Max:   300,
	}
}

// Seed describes a sprite present when the stage is created.
type Seed struct {
	Position geom.Point
	Hero     bool
	Blocks   []block.Block
}

// Options configures a Stage. Zero values take defaults.
type Options struct {
	// Interp is the template for every sprite's interpreter. OnChange,
	// OnDone and Logger are replaced by the stage.
	Interp interp.Options

	Collision     CollisionPolicy
	BoxSize       float64
	FlashDuration time.Duration // negative disables the flash

	Spawn Spawn
	// Seeds are created in order with ids 1..n. Empty means one sprite at
	// Spawn.First.
	Seeds []Seed

	// ClearBlocksOnReset empties every block list on Reset.
	ClearBlocksOnReset bool

	// Backlog is how many events the stage's broker retains.
	Backlog int

	Logger *logging.Logger
	// Rand returns values in [0,1) for random spawning.
	Rand func() float64
}

func (o Options) withDefaults() Options {
	if o.Collision == "" {
		o.Collision = CollisionAllPairs
	}
	if o.BoxSize <= 0 {
		o.BoxSize = geom.DefaultBoxSize
	}
	if o.FlashDuration == 0 {
		o.FlashDuration = DefaultFlashDuration
	}
	if o.Spawn == (Spawn{}) {
		o.Spawn = DefaultSpawn()
	}
	if o.Spawn.Mode == "" {
		o.Spawn.Mode = SpawnFixed
	}
	if o.Logger == nil {
		o.Logger = logging.Default()
	}
	if o.Rand == nil {
		o.Rand = rand.Float64
	}
	return o
}

// CollisionPair is the collision status of two sprites, A < B.
type CollisionPair = stream.CollisionPair

// Snapshot is a read-only copy of one sprite.
type Snapshot struct {
	ID        int           `json:"id"`
	Blocks    []block.Block `json:"blocks"`
	Position  geom.Point    `json:"position"`
	Heading   float64       `json:"heading"`
	Active    bool          `json:"active"`
	Hero      bool          `json:"hero"`
	Selected  bool          `json:"selected"`
	SayText   string        `json:"say_text,omitempty"`
	ThinkText string        `json:"think_text,omitempty"`
	Animation string        `json:"animation,omitempty"`
	Colliding bool          `json:"colliding"`
}

// Event converts the snapshot to its stream payload.
func (s Snapshot) Event() stream.SpriteEvent {
	return stream.SpriteEvent{
		ID:         s.ID,
		X:          s.Position.X,
		Y:          s.Position.Y,
		Heading:    s.Heading,
		Active:     s.Active,
		Hero:       s.Hero,
		Selected:   s.Selected,
		SayText:    s.SayText,
		ThinkText:  s.ThinkText,
		Animation:  s.Animation,
		Colliding:  s.Colliding,
		BlockCount: len(s.Blocks),
	}
}
