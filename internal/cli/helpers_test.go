package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// specsDir is the shared workload fixture.
var specsDir = filepath.Join("..", "..", "testdata", "specs")

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// writeWorkload writes content as the only CUE file of a fresh directory.
func writeWorkload(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "workload.cue"), []byte(content), 0644))
	return dir
}

// tempDB returns a path for a store that does not exist yet.
func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "joinopt.db")
}
