package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/thruflo/stagehand/internal/config"
	"github.com/thruflo/stagehand/internal/logging"
)

// Version is set at build time via ldflags.
var Version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "stagehand",
	Short: "Run block scripts for a stage of sprites",
	Long: `Stagehand runs per-sprite block scripts (move, turn, goto, say, think,
wait, repeat, animation) concurrently on a shared stage, tracks collisions
between sprites and streams every change to viewers.

Scenes are YAML files listing sprites and their scripts. Run one locally,
serve a stage over HTTP for an editor, or attach a terminal viewer to a
running server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("stagehand version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultFileName, "Config file (defaults apply when missing)")
}

// Execute runs the root command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig loads the config at path and applies its log level.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	logging.SetLevel(cfg.LogLevel())
	return cfg, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
