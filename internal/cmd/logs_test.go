package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taskdash/taskdash/internal/logging"
)

func TestLogsFilterByLevelAndSubstring(t *testing.T) {
	dir := t.TempDir()
	logger, err := logging.NewLogger(dir, logging.LevelDebug)
	require.NoError(t, err)
	logger.Debug("debug line")
	logger.Info("plan reloaded")
	logger.Warn("plan reload failed")
	require.NoError(t, logger.Close())

	entries, err := logging.AggregateLogs(dir)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	filtered := logging.FilterLogs(entries, logging.LogFilter{Level: logging.LevelWarn})
	require.Len(t, filtered, 1)
	require.Equal(t, "plan reload failed", filtered[0].Message)

	filtered = logging.FilterLogs(entries, logging.LogFilter{MessageContains: "plan"})
	require.Len(t, filtered, 2)
}

func TestLogsExportWritesFile(t *testing.T) {
	dir := t.TempDir()
	logger, err := logging.NewLogger(dir, logging.LevelInfo)
	require.NoError(t, err)
	logger.Info("hello")
	require.NoError(t, logger.Close())

	entries, err := logging.AggregateLogs(dir)
	require.NoError(t, err)

	out := filepath.Join(dir, "export.json")
	require.NoError(t, logging.ExportLogEntries(entries, out, "json"))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Contains(t, string(data), "hello")
}

func TestLogsSinceFilterExcludesEarlierEntries(t *testing.T) {
	now := time.Now()
	entries := []logging.LogEntry{
		{Timestamp: now.Add(-time.Hour), Level: logging.LevelInfo, Message: "old"},
		{Timestamp: now, Level: logging.LevelInfo, Message: "new"},
	}
	filtered := logging.FilterLogs(entries, logging.LogFilter{StartTime: now.Add(-time.Minute)})
	require.Len(t, filtered, 1)
	require.Equal(t, "new", filtered[0].Message)
}
