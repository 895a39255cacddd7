package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/thruflo/stagehand/internal/block"
)

var lintCmd = &cobra.Command{
	Use:   "lint <blocks.json|scene.yaml>",
	Short: "Check block scripts for values that would fall back to defaults",
	Long: `Validate a block list (JSON) or a scene (YAML) against the block schema.

Scripts with missing or mistyped fields still run, with those fields taking
their defaults. Lint reports every such field so the fallback is never a
surprise. The command fails when any issue is found.

Example:
  stagehand lint blocks.json
  stagehand lint scene.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runLint,
}

func init() {
	rootCmd.AddCommand(lintCmd)
}

func runLint(cmd *cobra.Command, args []string) error {
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	issues, err := lintFile(path, data)
	if err != nil {
		return err
	}
	return reportIssues(cmd.OutOrStdout(), path, issues)
}

// lintFile lints a JSON block list, or a YAML scene whose sprites carry
// block lists. Scene issue paths point into the scene document.
func lintFile(path string, data []byte) ([]block.Issue, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return lintScene(data)
	default:
		return block.LintJSON(data)
	}
}

func lintScene(data []byte) ([]block.Issue, error) {
	var doc struct {
		Sprites []struct {
			Blocks any `yaml:"blocks"`
		} `yaml:"sprites"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse scene: %w", err)
	}

	var issues []block.Issue
	for i, sprite := range doc.Sprites {
		if sprite.Blocks == nil {
			continue
		}
		// Round-trip through JSON so the schema sees JSON types.
		raw, err := json.Marshal(sprite.Blocks)
		if err != nil {
			return nil, fmt.Errorf("sprite %d: %w", i, err)
		}
		found, err := block.LintJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("sprite %d: %w", i, err)
		}
		prefix := fmt.Sprintf("/sprites/%d/blocks", i)
		for _, issue := range found {
			issue.Path = prefix + issue.Path
			issues = append(issues, issue)
		}
	}
	return issues, nil
}

func reportIssues(w io.Writer, path string, issues []block.Issue) error {
	if len(issues) == 0 {
		fmt.Fprintf(w, "%s: ok\n", path)
		return nil
	}
	for _, issue := range issues {
		fmt.Fprintf(w, "%s:%s\n", path, issue.String())
	}
	return fmt.Errorf("%d issue(s) found", len(issues))
}
