package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TestParseLogLevel verifies mapping from strings to zapcore.Level and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		" ERROR ": zapcore.ErrorLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok)
		require.Equal(t, lvl, got)
	}

	_, ok := ParseLogLevel("unknown")
	require.False(t, ok)
}

// TestNewWithOutputs_SplitsStreams checks that warnings and errors go to the error stream only.
func TestNewWithOutputs_SplitsStreams(t *testing.T) {
	t.Parallel()

	var out, errOut bytes.Buffer

	l := NewWithOutputs(zap.NewAtomicLevelAt(zapcore.DebugLevel), zapcore.AddSync(&out), zapcore.AddSync(&errOut))
	l.Info("plain progress")
	l.Error("something broke")

	require.NoError(t, l.Sync())
	require.Contains(t, out.String(), "plain progress")
	require.NotContains(t, out.String(), "something broke")
	require.Contains(t, errOut.String(), "something broke")
	require.NotContains(t, errOut.String(), "plain progress")
}

// TestContextHelpers ensures loggers stored in a context carry names and fields.
func TestContextHelpers(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	l := NewWithOutputs(zap.NewAtomicLevelAt(zapcore.InfoLevel), zapcore.AddSync(&out), zapcore.AddSync(&out))

	ctx := ToContext(context.Background(), l)
	ctx = WithName(ctx, "acquire")
	ctx = WithKV(ctx, "run_id", "abc")

	InfoKV(ctx, "Fetching checksum", "artifact", "eclipse.tar.gz")
	DebugKV(ctx, "hidden")

	require.NoError(t, FromContext(ctx).Sync())
	require.Contains(t, out.String(), "acquire")
	require.Contains(t, out.String(), "abc")
	require.Contains(t, out.String(), "eclipse.tar.gz")
	require.NotContains(t, out.String(), "hidden")

	//nolint:staticcheck // A nil context must fall back to the global logger.
	require.Same(t, global, FromContext(nil))
}
