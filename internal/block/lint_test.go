package block

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLintJSONValidProgram(t *testing.T) {
	issues, err := LintJSON([]byte(`[
		{"type":"move","value":10},
		{"type":"turn","value":15},
		{"type":"goto","x":0,"y":0},
		{"type":"say","message":"Hello!","time":2},
		{"type":"think","message":"Hmm...","time":2},
		{"type":"wait","time":1},
		{"type":"repeat","count":3,"subBlocks":[{"type":"move","value":5}]},
		{"type":"animation","animationName":"spin","duration":1}
	]`))
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestLintJSONReportsDefaultedFields(t *testing.T) {
	tests := []struct {
		name       string
		doc        string
		wantPrefix string
	}{
		{"missing move value", `[{"type":"move"}]`, "/0"},
		{"string wait time", `[{"type":"move","value":1},{"type":"wait","time":"soon"}]`, "/1"},
		{"unknown kind", `{"type":"frobnicate"}`, "/type"},
		{"nested repeat", `{"type":"repeat","count":2,"subBlocks":[{"type":"repeat","count":1}]}`, "/subBlocks/0"},
		{"missing type", `{"value":3}`, ""},
		{"count above cap", `{"type":"repeat","count":20000,"subBlocks":[]}`, "/count"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues, err := LintJSON([]byte(tt.doc))
			require.NoError(t, err)
			require.NotEmpty(t, issues)
			for _, issue := range issues {
				assert.True(t, strings.HasPrefix(issue.Path, tt.wantPrefix), "path %q", issue.Path)
				assert.NotEmpty(t, issue.Message)
			}
		})
	}
}

func TestLintJSONInvalidSyntax(t *testing.T) {
	_, err := LintJSON([]byte(`[{`))
	assert.Error(t, err)
}

func TestSummary(t *testing.T) {
	out := Summary([]Issue{{Path: "", Message: "missing type"}, {Path: "/1/time", Message: "expected number"}})
	assert.Equal(t, "/: missing type\n/1/time: expected number", out)
}
