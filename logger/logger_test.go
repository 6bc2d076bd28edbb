package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surajsub/sapgui-step-dsl/models"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func readEntries(t *testing.T, path string) []map[string]any {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(b)), "\n") {
		if line == "" {
			continue
		}
		var e map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &e))
		entries = append(entries, e)
	}
	return entries
}

func TestLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, Level(5))
	assert.Equal(t, logrus.InfoLevel, Level(4))
	assert.Equal(t, logrus.WarnLevel, Level(3))
	assert.Equal(t, logrus.ErrorLevel, Level(1))
	assert.Equal(t, logrus.WarnLevel, Level(0))
}

func TestNewLoggerWritesSeverities(t *testing.T) {
	dir := t.TempDir()
	cfg := models.LoggingConfig{LogName: "orders", LogPath: dir, LogFilename: "case.log", LogVerbosity: 2}

	l, closer, err := NewLogger(cfg)
	require.NoError(t, err)

	Shot(l, "shot.png")
	Status(l, "PASS")
	Documentation(l, "order created")
	l.Info("dropped")
	require.NoError(t, closer.Close())

	entries := readEntries(t, filepath.Join(dir, "case.log"))
	require.Len(t, entries, 2)
	assert.Equal(t, SeverityStatus, entries[0][SeverityField])
	assert.Equal(t, "PASS", entries[0]["msg"])
	assert.Equal(t, SeverityDocumentation, entries[1][SeverityField])
	assert.Equal(t, "orders", entries[1]["log_name"])
}

func TestNewLoggerFileModes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	require.NoError(t, os.WriteFile(path, []byte(`{"msg":"old"}`+"\n"), 0644))

	l, closer, err := NewLogger(models.LoggingConfig{LogFilename: path, LogVerbosity: 4})
	require.NoError(t, err)
	Shot(l, "a.png")
	require.NoError(t, closer.Close())
	assert.Len(t, readEntries(t, path), 2)

	l, closer, err = NewLogger(models.LoggingConfig{LogFilename: path, LogVerbosity: 4, LogFileMode: "w"})
	require.NoError(t, err)
	Shot(l, "b.png")
	require.NoError(t, closer.Close())

	entries := readEntries(t, path)
	require.Len(t, entries, 1)
	assert.Equal(t, SeverityShot, entries[0][SeverityField])
	assert.Equal(t, "b.png", entries[0]["msg"])
}

func TestZapAdapter(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	adapter := NewZapAdapter(zap.New(core))

	adapter.With("case", "orders").Info("step passed", "step", 3, 42, "odd")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "step passed", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "orders", fields["case"])
	assert.EqualValues(t, 3, fields["step"])
	assert.Equal(t, "odd", fields["unknown_key"])
}

func TestNewZapLogger(t *testing.T) {
	l, err := NewZapLogger(5)
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = NewZapLogger(2)
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.WarnLevel))
}
