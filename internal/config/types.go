package config

import (
	"github.com/thruflo/stagehand/internal/block"
)

// Timing holds interpreter suspensions in milliseconds.
type Timing struct {
	MotionMs  int     `yaml:"motion_ms"`
	NudgeMs   int     `yaml:"nudge_ms"`
	MinWaitMs int     `yaml:"min_wait_ms"`
	Scale     float64 `yaml:"scale"`
}

// Repeat configures repeat blocks.
type Repeat struct {
	Empty string `yaml:"empty"`
}

// Collision selects the collision policy and its parameters.
type Collision struct {
	Policy  string  `yaml:"policy"`
	BoxSize float64 `yaml:"box_size"`
	// FlashMs is how long swapped sprites stay flagged. Negative disables.
	FlashMs int `yaml:"flash_ms"`
}

// Spawn configures where sprites appear.
type Spawn struct {
	Mode   string  `yaml:"mode"`
	FirstX float64 `yaml:"first_x"`
	FirstY float64 `yaml:"first_y"`
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Min    float64 `yaml:"min"`
	Max    float64 `yaml:"max"`
}

// Reset configures the reset operation.
type Reset struct {
	ClearBlocks bool `yaml:"clear_blocks"`
}

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	Port         int    `yaml:"port"`
	PasswordHash string `yaml:"password_hash,omitempty"`
}

// Log configures the logger.
type Log struct {
	Level string `yaml:"level"`
}

// Config represents the stagehand.yaml file.
type Config struct {
	Timing    Timing       `yaml:"timing"`
	Motion    string       `yaml:"motion"`
	Repeat    Repeat       `yaml:"repeat"`
	Collision Collision    `yaml:"collision"`
	Spawn     Spawn        `yaml:"spawn"`
	Reset     Reset        `yaml:"reset"`
	Server    ServerConfig `yaml:"server"`
	Log       Log          `yaml:"log"`
}

// SceneSprite is one sprite in a scene file. Blocks decode leniently.
type SceneSprite struct {
	X      float64       `yaml:"x"`
	Y      float64       `yaml:"y"`
	Hero   bool          `yaml:"hero,omitempty"`
	Blocks []block.Block `yaml:"blocks,omitempty"`
}

// Scene represents a scene file.
type Scene struct {
	Sprites []SceneSprite `yaml:"sprites"`
}
