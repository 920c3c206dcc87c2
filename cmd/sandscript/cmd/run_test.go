package cmd

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, source string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.tengo")
	require.NoError(t, os.WriteFile(path, []byte(source), 0644))
	return path
}

func execRun(t *testing.T, path string) error {
	t.Helper()
	rootCmd.SetOut(io.Discard)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs([]string{"run", path})
	return rootCmd.Execute()
}

func TestRunCommand_Success(t *testing.T) {
	err := execRun(t, writeScript(t, `output := 6 * 7`))
	assert.NoError(t, err)
}

func TestRunCommand_FailureReturnsError(t *testing.T) {
	// Failures surface as an error from Execute rather than a direct process
	// exit, so the deferred runtime shutdown still runs.
	err := execRun(t, writeScript(t, `output := undefined_name`))
	assert.Error(t, err)
}
