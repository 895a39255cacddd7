package cli

import (
	"bytes"
	"context"
	"log"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thruflo/stagehand/internal/config"
	"github.com/thruflo/stagehand/internal/geom"
	"github.com/thruflo/stagehand/internal/logging"
	"github.com/thruflo/stagehand/internal/stage"
	"github.com/thruflo/stagehand/internal/stream"
	"github.com/thruflo/stagehand/internal/testutil"
)

func sampleConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.ParseConfig([]byte(testutil.SampleConfigYAML))
	require.NoError(t, err)
	return cfg
}

func sampleSeeds(t *testing.T) []stage.Seed {
	t.Helper()
	seeds, err := config.ParseScene([]byte(testutil.SampleSceneYAML))
	require.NoError(t, err)
	return seeds
}

func TestRunCommand_RequiresSceneArg(t *testing.T) {
	assert.Equal(t, "run <scene.yaml>", runCmd.Use)
	assert.Error(t, runCmd.Args(runCmd, []string{}))
	assert.Error(t, runCmd.Args(runCmd, []string{"a.yaml", "b.yaml"}))
	assert.NoError(t, runCmd.Args(runCmd, []string{"scene.yaml"}))
}

func TestApplySpeed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		speed     float64
		wantScale float64
		wantErr   bool
	}{
		{name: "normal", speed: 1, wantScale: 1},
		{name: "faster", speed: 4, wantScale: 0.25},
		{name: "slower", speed: 0.5, wantScale: 2},
		{name: "zero", speed: 0, wantErr: true},
		{name: "negative", speed: -1, wantErr: true},
		{name: "nan", speed: math.NaN(), wantErr: true},
		{name: "inf", speed: math.Inf(1), wantErr: true},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := config.DefaultConfig()
			err := applySpeed(&cfg, tt.speed)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantScale, cfg.Timing.Scale)
		})
	}
}

func TestRunScene(t *testing.T) {
	t.Parallel()

	snaps, err := runScene(context.Background(), sampleConfig(t), sampleSeeds(t), "")
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	testutil.AssertPoint(t, geom.Point{X: 10, Y: 0}, snaps[0].Position)
	testutil.AssertPoint(t, geom.Point{X: 315, Y: 0}, snaps[1].Position)
	assert.True(t, snaps[1].Hero)
	for _, s := range snaps {
		assert.False(t, s.Active)
	}
}

func TestRunScene_Trace(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.ndjson.zst")
	_, err := runScene(context.Background(), sampleConfig(t), sampleSeeds(t), path)
	require.NoError(t, err)

	events, err := stream.ReadTraceFile(path)
	require.NoError(t, err)
	require.NotEmpty(t, events)

	counts := map[stream.MessageType]int{}
	for _, e := range events {
		counts[e.Type]++
	}
	assert.Equal(t, 1, counts[stream.MessageTypeRun])
	assert.Equal(t, 2, counts[stream.MessageTypeDone])
	assert.NotZero(t, counts[stream.MessageTypeSprite])
}

func TestRunScene_Cancelled(t *testing.T) {
	t.Parallel()

	cfg := sampleConfig(t)
	cfg.Timing.MotionMs = 60_000

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := runScene(ctx, cfg, sampleSeeds(t), "")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunScene_BadTracePath(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "missing", "run.ndjson.zst")
	_, err := runScene(context.Background(), sampleConfig(t), sampleSeeds(t), path)
	assert.Error(t, err)
}

func TestSilenceLogsRestoresPreviousOutput(t *testing.T) {
	orig := logging.Output()
	t.Cleanup(func() { logging.SetOutput(orig) })

	var buf bytes.Buffer
	custom := log.New(&buf, "test ", 0)
	logging.SetOutput(custom)

	restore := silenceLogs()
	logging.Error("hidden")
	assert.Empty(t, buf.String())

	restore()
	assert.Same(t, custom, logging.Output())
	logging.Error("shown")
	assert.Contains(t, buf.String(), "test ERROR: shown")
}

func TestPrintSnapshots(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, printSnapshots(&buf, []stage.Snapshot{
		{ID: 1, Position: geom.Point{X: 10, Y: 0}},
		{ID: 2, Position: geom.Point{X: 315, Y: 0}, Hero: true, Colliding: true, SayText: "Hi"},
	}))

	out := buf.String()
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "HEADING")
	assert.Contains(t, out, "315")
	assert.Contains(t, out, `hero, colliding, says "Hi"`)
}

func TestDescribeState(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		snap stage.Snapshot
		want string
	}{
		{name: "idle", snap: stage.Snapshot{}, want: "-"},
		{name: "think", snap: stage.Snapshot{ThinkText: "Hmm..."}, want: `thinks "Hmm..."`},
		{name: "animation", snap: stage.Snapshot{Hero: true, Animation: "spin"}, want: "hero, animation spin"},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, describeState(tt.snap))
		})
	}
}
