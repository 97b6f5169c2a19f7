package utils

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_WritesKeyValues(t *testing.T) {
	dir := t.TempDir()

	path, err := InitLogger(LoggerOptions{Dir: dir, Prefix: "test"})
	require.NoError(t, err)
	t.Cleanup(Close)

	assert.True(t, strings.HasPrefix(path, dir), "log file should live in the requested dir")

	Info("Loaded training examples", "count", 42)
	Debug("hidden at info level", "x", 1)
	Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "Logger initialized")
	assert.Contains(t, content, "Loaded training examples")
	assert.Contains(t, content, "42")
	assert.NotContains(t, content, "hidden at info level")
}

func TestLogger_DebugLevel(t *testing.T) {
	path, err := InitLogger(LoggerOptions{Dir: t.TempDir(), Debug: true})
	require.NoError(t, err)

	Debug("visible debug line")
	Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "visible debug line")
}

func TestLogger_NoopBeforeInit(t *testing.T) {
	Close()
	assert.NotPanics(t, func() {
		Info("nobody listens")
		Error("nobody listens", "error", "x")
	})
}

func TestLogger_CloseTwice(t *testing.T) {
	path, err := InitLogger(LoggerOptions{Dir: t.TempDir()})
	require.NoError(t, err)

	Info("before close")
	Close()
	assert.NotPanics(t, Close)
	Info("after close")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "before close")
	assert.NotContains(t, string(data), "after close")
}
