//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestExecRunner_Success captures standard output of a finished command.
func TestExecRunner_Success(t *testing.T) {
	t.Parallel()

	res, err := NewExecRunner().Run(context.Background(), "sh", "-c", "echo hello")
	require.NoError(t, err)
	require.Equal(t, "hello\n", res.Stdout)
	require.Zero(t, res.ExitCode)
}

// TestExecRunner_NonZeroExit reports a classified CommandError with the exit status.
func TestExecRunner_NonZeroExit(t *testing.T) {
	t.Parallel()

	res, err := NewExecRunner().Run(context.Background(), "sh", "-c", "echo partial; echo broken >&2; exit 3")
	require.ErrorIs(t, err, ErrSubprocessFailure)

	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	require.Equal(t, 3, cmdErr.ExitCode)
	require.Contains(t, cmdErr.Output, "broken")
	require.Contains(t, err.Error(), "exited: 3")

	require.NotNil(t, res)
	require.Equal(t, 3, res.ExitCode)
	require.Equal(t, "partial\n", res.Stdout)
}

// TestExecRunner_MissingBinary classifies start failures as subprocess failures.
func TestExecRunner_MissingBinary(t *testing.T) {
	t.Parallel()

	res, err := NewExecRunner().Run(context.Background(), "definitely-not-installed-binary-4242")
	require.ErrorIs(t, err, ErrSubprocessFailure)
	require.Nil(t, res)

	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	require.Equal(t, -1, cmdErr.ExitCode)
}

// TestExecRunner_WithDir runs commands inside the configured directory.
func TestExecRunner_WithDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "marker.txt"), []byte("x"), 0o600))

	res, err := NewExecRunner(WithDir(dir)).Run(context.Background(), "ls")
	require.NoError(t, err)
	require.Contains(t, res.Stdout, "marker.txt")
}

// TestCommandLine quotes arguments that contain spaces or quotes.
func TestCommandLine(t *testing.T) {
	t.Parallel()

	require.Equal(t, "tar -xf a.tar.gz", CommandLine("tar", "-xf", "a.tar.gz"))
	require.Equal(t, `spctl --add --label 'My App' ''`, CommandLine("spctl", "--add", "--label", "My App", ""))
	require.Equal(t, `echo 'it'\''s'`, CommandLine("echo", "it's"))
}

// TestCommandError_TruncatesOutput keeps error messages bounded.
func TestCommandError_TruncatesOutput(t *testing.T) {
	t.Parallel()

	err := &CommandError{Command: "x", ExitCode: 1, Output: strings.Repeat("a", maxReportedOutput*2)}
	require.Less(t, len(err.Error()), maxReportedOutput+100)
	require.True(t, errors.Is(err, ErrSubprocessFailure))
}
