package config

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/thruflo/stagehand/internal/block"
	"github.com/thruflo/stagehand/internal/geom"
	"github.com/thruflo/stagehand/internal/interp"
	"github.com/thruflo/stagehand/internal/logging"
	"github.com/thruflo/stagehand/internal/stage"
)

// DefaultFileName is the config file looked up when no path is given.
const DefaultFileName = "stagehand.yaml"

// Default values for Config.
const (
	DefaultMotionMs   = 300
	DefaultNudgeMs    = 200
	DefaultMinWaitMs  = 100
	DefaultScale      = 1.0
	DefaultFlashMs    = 500
	DefaultServerPort = 8375
	DefaultLogLevel   = "warn"
)

// ErrSceneEmpty is returned by LoadScene for a scene without sprites.
var ErrSceneEmpty = errors.New("scene has no sprites")

// DefaultTiming returns the editor's timings.
func DefaultTiming() Timing {
	return Timing{
		MotionMs:  DefaultMotionMs,
		NudgeMs:   DefaultNudgeMs,
		MinWaitMs: DefaultMinWaitMs,
		Scale:     DefaultScale,
	}
}

// DefaultServerConfig returns a ServerConfig with sensible default values.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port: DefaultServerPort,
	}
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	spawn := stage.DefaultSpawn()
	return Config{
		Timing: DefaultTiming(),
		Motion: string(interp.MotionHeading),
		Repeat: Repeat{Empty: string(interp.EmptyRepeatNudge)},
		Collision: Collision{
			Policy:  string(stage.CollisionAllPairs),
			BoxSize: geom.DefaultBoxSize,
			FlashMs: DefaultFlashMs,
		},
		Spawn: Spawn{
			Mode:   string(spawn.Mode),
			FirstX: spawn.First.X,
			FirstY: spawn.First.Y,
			X:      spawn.At.X,
			Y:      spawn.At.Y,
			Min:    spawn.Min,
			Max:    spawn.Max,
		},
		Server: DefaultServerConfig(),
		Log:    Log{Level: DefaultLogLevel},
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// LoadConfig reads and parses the config file at path.
// If the file doesn't exist, returns default config.
// Applies defaults for any missing fields.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			return &cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses config YAML over the defaults and validates it.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ValidateConfig checks that all config values are valid.
func ValidateConfig(cfg *Config) error {
	if cfg.Timing.MotionMs < 0 {
		return ValidationError{Field: "timing.motion_ms", Message: "must not be negative"}
	}
	if cfg.Timing.NudgeMs < 0 {
		return ValidationError{Field: "timing.nudge_ms", Message: "must not be negative"}
	}
	if cfg.Timing.MinWaitMs < 0 {
		return ValidationError{Field: "timing.min_wait_ms", Message: "must not be negative"}
	}
	if cfg.Timing.Scale <= 0 || math.IsInf(cfg.Timing.Scale, 0) || math.IsNaN(cfg.Timing.Scale) {
		return ValidationError{Field: "timing.scale", Message: "must be positive"}
	}

	switch interp.MotionPolicy(cfg.Motion) {
	case interp.MotionHeading, interp.MotionNaive:
	default:
		return ValidationError{Field: "motion", Message: fmt.Sprintf("unknown policy %q", cfg.Motion)}
	}

	switch interp.EmptyRepeatPolicy(cfg.Repeat.Empty) {
	case interp.EmptyRepeatNudge, interp.EmptyRepeatNoop:
	default:
		return ValidationError{Field: "repeat.empty", Message: fmt.Sprintf("unknown policy %q", cfg.Repeat.Empty)}
	}

	if err := validateCollision(cfg.Collision); err != nil {
		return err
	}
	if err := validateSpawn(cfg.Spawn); err != nil {
		return err
	}
	if err := ValidateServerConfig(&cfg.Server); err != nil {
		return err
	}

	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		return ValidationError{Field: "log.level", Message: err.Error()}
	}

	return nil
}

func validateCollision(c Collision) error {
	switch stage.CollisionPolicy(c.Policy) {
	case stage.CollisionAllPairs, stage.CollisionHeroOnly:
	default:
		return ValidationError{Field: "collision.policy", Message: fmt.Sprintf("unknown policy %q", c.Policy)}
	}
	if c.BoxSize <= 0 {
		return ValidationError{Field: "collision.box_size", Message: "must be positive"}
	}
	return nil
}

func validateSpawn(s Spawn) error {
	switch stage.SpawnMode(s.Mode) {
	case stage.SpawnFixed:
	case stage.SpawnRandom:
		if s.Max <= s.Min {
			return ValidationError{Field: "spawn.max", Message: "must be greater than spawn.min"}
		}
	default:
		return ValidationError{Field: "spawn.mode", Message: fmt.Sprintf("unknown mode %q", s.Mode)}
	}
	return nil
}

// ValidateServerConfig checks that server config values are valid.
func ValidateServerConfig(cfg *ServerConfig) error {
	if cfg.Port < 0 || cfg.Port > 65535 {
		return ValidationError{Field: "server.port", Message: "must be between 0 and 65535"}
	}
	return nil
}

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// TimingOptions converts the millisecond timings to interpreter durations.
func (c Config) TimingOptions() interp.Timing {
	return interp.Timing{
		Motion:  time.Duration(c.Timing.MotionMs) * time.Millisecond,
		Nudge:   time.Duration(c.Timing.NudgeMs) * time.Millisecond,
		MinWait: time.Duration(c.Timing.MinWaitMs) * time.Millisecond,
		Scale:   c.Timing.Scale,
	}
}

// InterpOptions returns the interpreter template for every sprite.
func (c Config) InterpOptions() interp.Options {
	return interp.Options{
		Timing:      c.TimingOptions(),
		Motion:      interp.MotionPolicy(c.Motion),
		EmptyRepeat: interp.EmptyRepeatPolicy(c.Repeat.Empty),
	}
}

// StageOptions builds stage options from the config and the given seeds.
func (c Config) StageOptions(seeds []stage.Seed) stage.Options {
	flash := time.Duration(c.Collision.FlashMs) * time.Millisecond
	if c.Collision.FlashMs < 0 {
		flash = -1
	}
	return stage.Options{
		Interp:        c.InterpOptions(),
		Collision:     stage.CollisionPolicy(c.Collision.Policy),
		BoxSize:       c.Collision.BoxSize,
		FlashDuration: flash,
		Spawn: stage.Spawn{
			Mode:  stage.SpawnMode(c.Spawn.Mode),
			First: geom.Point{X: c.Spawn.FirstX, Y: c.Spawn.FirstY},
			At:    geom.Point{X: c.Spawn.X, Y: c.Spawn.Y},
			Min:   c.Spawn.Min,
			Max:   c.Spawn.Max,
		},
		Seeds:              seeds,
		ClearBlocksOnReset: c.Reset.ClearBlocks,
	}
}

// LogLevel returns the configured level. Validated configs never fail here.
func (c Config) LogLevel() logging.Level {
	level, _ := logging.ParseLevel(c.Log.Level)
	return level
}

// LoadScene reads a scene file and returns one seed per sprite. Block maps
// are decoded leniently; malformed blocks take their defaults.
func LoadScene(path string) ([]stage.Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("scene not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read scene file: %w", err)
	}
	return ParseScene(data)
}

// ParseScene decodes scene YAML (JSON is valid YAML) into seeds.
func ParseScene(data []byte) ([]stage.Seed, error) {
	var scene Scene
	if err := yaml.Unmarshal(data, &scene); err != nil {
		return nil, fmt.Errorf("failed to parse scene file: %w", err)
	}
	if len(scene.Sprites) == 0 {
		return nil, ErrSceneEmpty
	}

	seeds := make([]stage.Seed, 0, len(scene.Sprites))
	for _, sp := range scene.Sprites {
		blocks := sp.Blocks
		if blocks == nil {
			blocks = []block.Block{}
		}
		seeds = append(seeds, stage.Seed{
			Position: geom.Point{X: sp.X, Y: sp.Y},
			Hero:     sp.Hero,
			Blocks:   blocks,
		})
	}
	return seeds, nil
}

// Watch reloads the config at path whenever it is written or replaced and
// hands each valid result to fn. Invalid files are logged and skipped.
// Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, fn func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace the file, so watch the directory.
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cfg, err := LoadConfig(abs)
			if err != nil {
				logging.Warn("config reload failed", "path", abs, "error", err)
				continue
			}
			logging.Info("config reloaded", "path", abs)
			fn(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn("config watcher error", "error", err)
		}
	}
}
