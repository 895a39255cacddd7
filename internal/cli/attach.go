package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/thruflo/stagehand/internal/auth"
	"github.com/thruflo/stagehand/internal/logging"
	"github.com/thruflo/stagehand/internal/stream"
	"github.com/thruflo/stagehand/internal/tui"
)

var attachPassword bool

var attachCmd = &cobra.Command{
	Use:   "attach <url>",
	Short: "Watch and drive a served stage from the terminal",
	Long: `Connect to a running 'stagehand serve' and draw its stage in the
terminal. Press r to run, x to reset and q to quit.

When stdout is not a terminal the event stream is printed as JSON lines
instead, one event per line.

Example:
  stagehand attach http://localhost:8375
  stagehand attach http://stage.example.com:8375 --password
  stagehand attach http://localhost:8375 | jq .type`,
	Args: cobra.ExactArgs(1),
	RunE: runAttach,
}

func init() {
	attachCmd.Flags().BoolVar(&attachPassword, "password", false, "Prompt for the server password")
	rootCmd.AddCommand(attachCmd)
}

func runAttach(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	client := stream.NewStreamClient(args[0])
	if attachPassword {
		password, err := auth.NewPrompter().Prompt("Password: ")
		if err != nil {
			return err
		}
		if err := client.Authenticate(ctx, password); err != nil {
			return fmt.Errorf("authentication failed: %w", err)
		}
	}

	sprites, err := client.Sprites(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", client.BaseURL(), err)
	}

	events, errCh := client.Subscribe(ctx, 0)

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return tailEvents(ctx, cmd.OutOrStdout(), events, errCh)
	}

	screen, err := tui.NewScreen()
	if err != nil {
		return err
	}
	restore := silenceLogs()
	defer restore()
	defer screen.Fini()

	// Stream failures end the session; the viewer only sees a closed channel.
	go func() {
		if err, ok := <-errCh; ok && err != nil {
			logging.Warn("stream failed", "error", err)
			cancel()
		}
	}()

	ui := tui.New(screen, client, sprites)
	err = ui.Run(ctx, events)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// tailEvents prints events as JSON lines until the stream ends.
func tailEvents(ctx context.Context, out io.Writer, events <-chan *stream.Event, errCh <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-events:
			if !ok {
				// errCh closes with events and holds at most one error.
				if err, ok := <-errCh; ok && err != nil {
					return fmt.Errorf("stream error: %w", err)
				}
				return nil
			}
			data, err := e.Marshal()
			if err != nil {
				logging.Warn("event encoding failed", "seq", e.Seq, "error", err)
				continue
			}
			if _, err := fmt.Fprintln(out, string(data)); err != nil {
				return err
			}
		}
	}
}
