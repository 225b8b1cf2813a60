package log_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/textlab/nlprun/internal/log"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Options{Level: slog.LevelDebug, Writer: &buf})

	ctx := log.ContextAttrs(t.Context(), slog.String("cmd", "cat"))
	ctx2 := log.ContextAttrs(ctx, slog.Int("pid", 42))
	logger.With("component", "pipe").InfoContext(ctx2, "started")

	line := buf.Bytes()
	require.Equal(t, "started", gjson.GetBytes(line, "msg").String())
	require.Equal(t, "cat", gjson.GetBytes(line, "cmd").String())
	require.Equal(t, int64(42), gjson.GetBytes(line, "pid").Int())
	require.Equal(t, "pipe", gjson.GetBytes(line, "component").String())

	// the parent context is not changed by deriving a child
	buf.Reset()
	logger.InfoContext(ctx, "again")
	require.False(t, gjson.GetBytes(buf.Bytes(), "pid").Exists())
}

func TestParseLevel(t *testing.T) {
	var testCases = []struct {
		given string
		then  slog.Level
		err   bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range testCases {
		t.Run(tt.given, func(t *testing.T) {
			level, err := log.ParseLevel(tt.given)
			if tt.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.then, level)
		})
	}
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Options{Format: log.FormatText, Writer: &buf})
	logger.Debug("hidden")
	logger.Info("shown")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "msg=shown")
}
