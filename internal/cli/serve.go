package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thruflo/stagehand/internal/config"
	"github.com/thruflo/stagehand/internal/logging"
	"github.com/thruflo/stagehand/internal/server"
	"github.com/thruflo/stagehand/internal/stage"
)

var (
	servePort  int
	serveScene string
	serveWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a stage over HTTP",
	Long: `Start a stage and expose it over HTTP and websockets so an editor or
'stagehand attach' can drive it.

The stage starts with the sprites of --scene, or a single sprite when no
scene is given. Set server.password_hash in the config (see
'stagehand hash-password') to require a password.

With --watch, edits to the config file change the timing of runs started
afterwards.

Example:
  stagehand serve
  stagehand serve --port 9000 --scene scene.yaml --watch`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (overrides server.port)")
	serveCmd.Flags().StringVar(&serveScene, "scene", "", "Scene to load at startup")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Reload timing when the config file changes")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
		if err := config.ValidateServerConfig(&cfg.Server); err != nil {
			return err
		}
	}

	var seeds []stage.Seed
	if serveScene != "" {
		if seeds, err = config.LoadScene(serveScene); err != nil {
			return err
		}
	}

	st := stage.New(cfg.StageOptions(seeds))
	defer st.Close()

	srv, err := server.NewFromConfig(st, cfg.Server, logging.Default())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	if serveWatch {
		go watchConfig(ctx, configPath, st)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Serving stage on port %d (auth: %v)\n", srv.Port(), srv.AuthRequired())
	return serve(ctx, srv)
}

// serve runs srv until ctx is done or it fails.
func serve(ctx context.Context, srv *server.Server) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if err := srv.Stop(); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// watchConfig applies reloaded timing and log level to st until ctx is done.
func watchConfig(ctx context.Context, path string, st *stage.Stage) {
	err := config.Watch(ctx, path, func(cfg *config.Config) {
		st.SetTiming(cfg.TimingOptions())
		logging.SetLevel(cfg.LogLevel())
	})
	if err != nil {
		logging.Warn("config watch stopped", "path", path, "error", err)
	}
}
