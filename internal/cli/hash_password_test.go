package cli

import (
	"bytes"
	"os"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thruflo/stagehand/internal/auth"
)

func pipePrompter(t *testing.T, input string) *auth.Prompter {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	_, err = w.WriteString(input)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	t.Cleanup(func() { _ = r.Close() })
	return &auth.Prompter{In: r, Out: &bytes.Buffer{}}
}

func TestHashPassword(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	require.NoError(t, hashPassword(pipePrompter(t, "hunter22\nhunter22\n"), &out))

	m := regexp.MustCompile(`password_hash: "([^"]+)"`).FindStringSubmatch(out.String())
	require.Len(t, m, 2, "output: %s", out.String())

	valid, err := auth.VerifyPassword("hunter22", m[1])
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestHashPassword_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  error
	}{
		{name: "mismatch", input: "one\ntwo\n", want: auth.ErrPasswordMismatch},
		{name: "empty", input: "\n", want: auth.ErrEmptyPassword},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var out bytes.Buffer
			err := hashPassword(pipePrompter(t, tt.input), &out)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, out.String())
		})
	}
}
