package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// TestParseLogLevel verifies mapping from strings to zapcore.Level and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":  zapcore.DebugLevel,
		"info":   zapcore.InfoLevel,
		" WARN ": zapcore.WarnLevel,
		"error":  zapcore.ErrorLevel,
		"dpanic": zapcore.DPanicLevel,
		"panic":  zapcore.PanicLevel,
		"fatal":  zapcore.FatalLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok, s)
		require.Equal(t, lvl, got)
	}

	for _, s := range []string{"unknown", ""} {
		_, ok := ParseLogLevel(s)
		require.False(t, ok, s)
	}
}

// TestNewWithOutput writes uncolored lines with the logger name to the destination.
func TestNewWithOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	l := NewWithOutput(zapcore.AddSync(&buf), zapcore.DebugLevel)
	ctx := WithName(ToContext(context.Background(), l), "console")

	InfoKV(ctx, "Alert: Fire drill", "source", "127.0.0.1:40000")
	DebugKV(ctx, "details")

	out := buf.String()
	require.Contains(t, out, "INFO")
	require.Contains(t, out, "console")
	require.Contains(t, out, "Alert: Fire drill")
	require.Contains(t, out, "127.0.0.1:40000")
	require.Contains(t, out, "details")
	require.NotContains(t, out, "\x1b[")
}
