package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/thruflo/stagehand/internal/auth"
)

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password",
	Short: "Hash a password for the stage server",
	Long: `Prompt for a password and print its argon2id hash, ready to paste into
the server.password_hash setting of the config file.

Input is hidden on a terminal. Otherwise the password and its confirmation
are read as two lines, so they can be piped in.`,
	Args: cobra.NoArgs,
	RunE: runHashPassword,
}

func init() {
	rootCmd.AddCommand(hashPasswordCmd)
}

func runHashPassword(cmd *cobra.Command, args []string) error {
	return hashPassword(auth.NewPrompter(), cmd.OutOrStdout())
}

func hashPassword(p *auth.Prompter, out io.Writer) error {
	password, err := p.PromptAndConfirm()
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	fmt.Fprintln(out, "Add this to your config file:")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "server:")
	fmt.Fprintf(out, "  password_hash: %q\n", hash)
	return nil
}
