package logger

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  slog.Level
		ok    bool
	}{
		{"debug", "debug", slog.LevelDebug, true},
		{"upper case", "INFO", slog.LevelInfo, true},
		{"empty defaults to info", "", slog.LevelInfo, true},
		{"warn", "warn", slog.LevelWarn, true},
		{"error", "error", slog.LevelError, true},
		{"unknown", "chatty", slog.LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseLevel(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestSetup(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	buf := &TestLogBuffer{}
	l := Setup(Config{Level: "warn", Output: buf})
	require.NotNil(t, l)

	l.Info("dropped")
	l.Warn("kept", "image_id", "img1")

	entries, err := buf.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0]["msg"])
	assert.Equal(t, "img1", entries[0]["image_id"])
	assert.Same(t, l, slog.Default())
}

func TestSetupInvalidLevelWarns(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	buf := &TestLogBuffer{}
	Setup(Config{Level: "chatty", Output: buf})

	AssertLogContains(t, buf, "invalid log level configured")
	AssertLogField(t, buf, "configured_level", "chatty")
}

func TestContextLogger(t *testing.T) {
	t.Parallel()

	scoped, buf := GetTestLogger(t)
	fallback, fallbackBuf := GetTestLogger(t)

	t.Run("stored logger wins", func(t *testing.T) {
		ctx := WithLogger(context.Background(), scoped.With("message_id", "m-1"))
		FromContextOrDefault(ctx, fallback).Info("hello")
		AssertLogField(t, buf, "message_id", "m-1")
		assert.Empty(t, fallbackBuf.String())
	})

	t.Run("fallback when absent", func(t *testing.T) {
		assert.Same(t, fallback, FromContextOrDefault(context.Background(), fallback))
	})

	t.Run("default when nothing is set", func(t *testing.T) {
		assert.NotNil(t, FromContext(context.Background()))
	})
}
