package logging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected slog.Level
	}{
		{name: "debug", input: "debug", expected: slog.LevelDebug},
		{name: "dev alias", input: "dev", expected: slog.LevelDebug},
		{name: "info", input: "info", expected: slog.LevelInfo},
		{name: "warning alias", input: "warning", expected: slog.LevelWarn},
		{name: "production alias", input: "production", expected: slog.LevelError},
		{name: "unknown", input: "loud", expected: slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.input, slog.LevelWarn))
		})
	}
}

func TestInitUsesEnvironment(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	Init(slog.LevelError)
	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelDebug))

	t.Setenv("LOG_LEVEL", "error")
	Init(slog.LevelDebug)
	assert.False(t, slog.Default().Enabled(context.Background(), slog.LevelInfo))
}

func TestInitFile(t *testing.T) {
	t.Setenv("LOG_LEVEL", "info")
	path := filepath.Join(t.TempDir(), "bun.log")

	c, err := InitFile(path, slog.LevelWarn)
	require.NoError(t, err)
	slog.Info("joined", "room", "xkcd")
	require.NoError(t, c.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "room=xkcd")

	c, err = InitFile("", slog.LevelWarn)
	require.NoError(t, err)
	assert.NoError(t, c.Close())

	_, err = InitFile(filepath.Join(t.TempDir(), "missing", "bun.log"), slog.LevelWarn)
	assert.Error(t, err)
}
