package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWritesConsoleAndJSONFile(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "wheee.log")

	logger, err := New(Options{Level: "debug", File: path, Console: &console})
	require.NoError(t, err)
	logger.Named("orchestrator").Debug("level started", zap.Int("index", 2))
	require.NoError(t, logger.Close())

	assert.Contains(t, console.String(), "DEBUG")
	assert.Contains(t, console.String(), "level started")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	assert.Equal(t, "level started", entry["msg"])
	assert.Equal(t, "orchestrator", entry["logger"])
	assert.EqualValues(t, 2, entry["index"])
	assert.Equal(t, "debug", entry["level"])
}

func TestNewHonoursLevel(t *testing.T) {
	var console bytes.Buffer
	logger, err := New(Options{Level: "warn", Console: &console})
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown")
	require.NoError(t, logger.Close())

	assert.NotContains(t, console.String(), "hidden")
	assert.Contains(t, console.String(), "shown")
}

func TestNewJSONConsole(t *testing.T) {
	var console bytes.Buffer
	logger, err := New(Options{Format: "json", Console: &console})
	require.NoError(t, err)
	logger.Info("hello")
	require.NoError(t, logger.Close())
	assert.True(t, strings.HasPrefix(console.String(), "{"))
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	assert.Error(t, err)
}

func TestNopClose(t *testing.T) {
	assert.NoError(t, Nop().Close())
	var nilLogger *Logger
	assert.NoError(t, nilLogger.Close())
}
