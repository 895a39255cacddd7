package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thruflo/stagehand/internal/block"
	"github.com/thruflo/stagehand/internal/testutil"
)

func TestLintFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		path       string
		data       string
		wantIssues bool
		wantPrefix string
		wantErr    bool
	}{
		{
			name: "valid json",
			path: "blocks.json",
			data: `[{"type":"move","value":10},{"type":"wait","time":1}]`,
		},
		{
			name:       "json with defaulted field",
			path:       "blocks.json",
			data:       `[{"type":"move","value":10},{"type":"wait","time":"soon"}]`,
			wantIssues: true,
			wantPrefix: "/1",
		},
		{
			name: "valid scene",
			path: "scene.yaml",
			data: testutil.SampleSceneYAML,
		},
		{
			name: "scene with defaulted field",
			path: "scene.YML",
			data: `sprites:
  - x: 0
    y: 0
  - x: 10
    y: 10
    blocks:
      - type: say
        message: hi
`,
			wantIssues: true,
			wantPrefix: "/sprites/1/blocks/0",
		},
		{
			name:    "invalid json",
			path:    "blocks.json",
			data:    `[{`,
			wantErr: true,
		},
		{
			name:    "invalid yaml",
			path:    "scene.yaml",
			data:    "sprites: [",
			wantErr: true,
		},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			issues, err := lintFile(tt.path, []byte(tt.data))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if !tt.wantIssues {
				assert.Empty(t, issues)
				return
			}
			require.NotEmpty(t, issues)
			for _, issue := range issues {
				assert.True(t, strings.HasPrefix(issue.Path, tt.wantPrefix), "path %q", issue.Path)
			}
		})
	}
}

func TestReportIssues(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, reportIssues(&buf, "blocks.json", nil))
	assert.Equal(t, "blocks.json: ok\n", buf.String())

	buf.Reset()
	err := reportIssues(&buf, "blocks.json", []block.Issue{
		{Path: "/0/value", Message: "expected number"},
		{Path: "/1", Message: "missing time"},
	})
	assert.EqualError(t, err, "2 issue(s) found")
	assert.Equal(t, "blocks.json:/0/value: expected number\nblocks.json:/1: missing time\n", buf.String())
}

func TestLintCommand_Run(t *testing.T) {
	dir := testutil.SetupTestDir(t)
	path := testutil.WriteTestFile(t, dir, "scene.yaml", testutil.SampleSceneYAML)

	var buf bytes.Buffer
	lintCmd.SetOut(&buf)
	t.Cleanup(func() { lintCmd.SetOut(nil) })

	require.NoError(t, runLint(lintCmd, []string{path}))
	assert.Contains(t, buf.String(), "ok")

	assert.Error(t, runLint(lintCmd, []string{dir + "/missing.json"}))
}
