package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// SetupTestDir creates a temporary directory holding stagehand.yaml
// (SampleConfigYAML) and scene.yaml (SampleSceneYAML). Returns the directory
// path. The directory is automatically cleaned up when the test completes.
func SetupTestDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	WriteTestFile(t, dir, "stagehand.yaml", SampleConfigYAML)
	WriteTestFile(t, dir, "scene.yaml", SampleSceneYAML)
	return dir
}

// WriteTestFile writes content to path under base, creating parent
// directories. Returns the full path.
func WriteTestFile(t *testing.T, base, path, content string) string {
	t.Helper()

	full := filepath.Join(base, path)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	return full
}

// MustMarshalJSON marshals v to JSON or fails the test.
func MustMarshalJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err, "failed to marshal JSON")
	return data
}

// MustUnmarshalJSON unmarshals data into v or fails the test.
func MustUnmarshalJSON(t *testing.T, data []byte, v any) {
	t.Helper()
	err := json.Unmarshal(data, v)
	require.NoError(t, err, "failed to unmarshal JSON: %s", string(data))
}
