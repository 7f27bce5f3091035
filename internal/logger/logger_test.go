package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLogger(t *testing.T) {
	assert.True(t, NewLogger(true).Core().Enabled(zap.DebugLevel))
	assert.False(t, NewLogger(false).Core().Enabled(zap.DebugLevel))
}

func TestNewLoggerWithFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	logger, path, closeFn, err := NewLoggerWithFile(false, dir)
	require.NoError(t, err)

	logger.Debug("debug only in file", zap.Int("batch", 1))
	logger.Info("translation started")
	closeFn()

	assert.Equal(t, dir, filepath.Dir(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "debug only in file", entry["msg"])
	assert.Equal(t, float64(1), entry["batch"])
}
