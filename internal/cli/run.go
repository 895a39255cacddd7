package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/thruflo/stagehand/internal/config"
	"github.com/thruflo/stagehand/internal/logging"
	"github.com/thruflo/stagehand/internal/stage"
	"github.com/thruflo/stagehand/internal/stream"
	"github.com/thruflo/stagehand/internal/tui"
)

var (
	runSpeed float64
	runTrace string
	runTUI   bool
)

var runCmd = &cobra.Command{
	Use:   "run <scene.yaml>",
	Short: "Run a scene to completion",
	Long: `Load a scene, start every sprite's script at once and wait for all of
them to finish, then print where each sprite ended up.

With --tui the stage is drawn in the terminal instead; press r to run
again, x to reset and q to quit.

Example:
  stagehand run scene.yaml
  stagehand run scene.yaml --speed 4 --trace run.ndjson.zst
  stagehand run scene.yaml --tui`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().Float64Var(&runSpeed, "speed", 1, "Playback speed multiplier (2 runs twice as fast)")
	runCmd.Flags().StringVar(&runTrace, "trace", "", "Record every stage event to a zstd-compressed trace file")
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "Draw the stage in the terminal")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := applySpeed(cfg, runSpeed); err != nil {
		return err
	}

	seeds, err := config.LoadScene(args[0])
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	if runTUI {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			return errors.New("--tui requires a terminal")
		}
		return runSceneTUI(ctx, cfg, seeds, runTrace)
	}

	snaps, err := runScene(ctx, cfg, seeds, runTrace)
	if err != nil {
		return err
	}
	return printSnapshots(cmd.OutOrStdout(), snaps)
}

// applySpeed divides the configured timing scale by speed.
func applySpeed(cfg *config.Config, speed float64) error {
	if speed <= 0 || math.IsNaN(speed) || math.IsInf(speed, 0) {
		return fmt.Errorf("invalid speed %v: must be a positive number", speed)
	}
	cfg.Timing.Scale /= speed
	return nil
}

// runScene runs every sprite once and returns the final snapshots.
func runScene(ctx context.Context, cfg *config.Config, seeds []stage.Seed, tracePath string) ([]stage.Snapshot, error) {
	st := stage.New(cfg.StageOptions(seeds))
	finish, err := startTrace(st, tracePath)
	if err != nil {
		st.Close()
		return nil, err
	}

	runs := st.Run(ctx)
	logging.Info("running scene", "sprites", len(runs))

	waitErr := st.Wait(ctx)
	snaps := st.Snapshots()
	if err := finish(); err != nil {
		return nil, err
	}
	if waitErr != nil {
		return nil, fmt.Errorf("run interrupted: %w", waitErr)
	}
	return snaps, nil
}

// runSceneTUI runs the scene under the terminal viewer until the user quits.
func runSceneTUI(ctx context.Context, cfg *config.Config, seeds []stage.Seed, tracePath string) error {
	st := stage.New(cfg.StageOptions(seeds))
	finish, err := startTrace(st, tracePath)
	if err != nil {
		st.Close()
		return err
	}

	screen, err := tui.NewScreen()
	if err != nil {
		_ = finish()
		return err
	}
	restore := silenceLogs()

	initial := make([]stream.SpriteEvent, 0, len(seeds))
	for _, snap := range st.Snapshots() {
		initial = append(initial, snap.Event())
	}
	ui := tui.New(screen, localControls{st}, initial)
	events := st.Subscribe(ctx)
	st.Run(ctx)

	runErr := ui.Run(ctx, events)
	screen.Fini()
	restore()

	if err := finish(); err != nil {
		return err
	}
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

// startTrace records every event of st from its first one. finish closes
// the stage, then the trace.
func startTrace(st *stage.Stage, path string) (finish func() error, err error) {
	if path == "" {
		return func() error {
			st.Close()
			return nil
		}, nil
	}

	rec, err := stream.CreateRecorder(path)
	if err != nil {
		return nil, err
	}
	events := st.Broker().Subscribe(context.Background(), 0)
	done := make(chan error, 1)
	go func() { done <- rec.Record(context.Background(), events) }()

	return func() error {
		st.Close()
		recErr := <-done
		if err := rec.Close(); err != nil {
			return fmt.Errorf("failed to close trace: %w", err)
		}
		if recErr != nil {
			return fmt.Errorf("failed to write trace: %w", recErr)
		}
		logging.Info("trace written", "path", path, "events", rec.Count())
		return nil
	}, nil
}

// silenceLogs stops log lines from drawing over the screen.
func silenceLogs() (restore func()) {
	prev := logging.Output()
	logging.SetOutput(log.New(io.Discard, "", 0))
	return func() {
		logging.SetOutput(prev)
	}
}

// localControls drives an in-process stage from the viewer.
type localControls struct {
	st *stage.Stage
}

func (c localControls) Run(ctx context.Context) error {
	c.st.Run(ctx)
	return nil
}

func (c localControls) Reset(ctx context.Context) error {
	c.st.Reset()
	return nil
}

func printSnapshots(w io.Writer, snaps []stage.Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tX\tY\tHEADING\tBLOCKS\tSTATE")
	for _, s := range snaps {
		fmt.Fprintf(tw, "%d\t%g\t%g\t%g\t%d\t%s\n",
			s.ID, s.Position.X, s.Position.Y, s.Heading, len(s.Blocks), describeState(s))
	}
	return tw.Flush()
}

func describeState(s stage.Snapshot) string {
	var parts []string
	if s.Hero {
		parts = append(parts, "hero")
	}
	if s.Colliding {
		parts = append(parts, "colliding")
	}
	if s.SayText != "" {
		parts = append(parts, fmt.Sprintf("says %q", s.SayText))
	}
	if s.ThinkText != "" {
		parts = append(parts, fmt.Sprintf("thinks %q", s.ThinkText))
	}
	if s.Animation != "" {
		parts = append(parts, "animation "+s.Animation)
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ", ")
}
