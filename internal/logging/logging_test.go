package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForServiceAddsServiceAttribute(t *testing.T) {
	var structured, human bytes.Buffer
	structuredLevel.Set(slog.LevelDebug)
	humanReadableLevel.Set(slog.LevelInfo)
	SetOutput(&structured, &human)

	ForService("detector").Info("state changed", "state", "tracking")

	var record map[string]any
	require.NoError(t, json.Unmarshal(structured.Bytes(), &record))
	assert.Equal(t, "detector", record["service"])
	assert.Equal(t, "tracking", record["state"])
	assert.Equal(t, "INFO", record["level"])
}

func TestCustomLevelNames(t *testing.T) {
	var structured, human bytes.Buffer
	SetOutput(&structured, &human)
	SetLevel(LevelTrace)
	t.Cleanup(func() { SetLevel(slog.LevelInfo) })

	Trace("frame observed")

	var record map[string]any
	require.NoError(t, json.Unmarshal(structured.Bytes(), &record))
	assert.Equal(t, "TRACE", record["level"])
}

func TestSetLevelFiltersRecords(t *testing.T) {
	var structured, human bytes.Buffer
	SetOutput(&structured, &human)
	SetLevel(slog.LevelWarn)
	t.Cleanup(func() { SetLevel(slog.LevelInfo) })

	Info("suppressed")
	assert.Zero(t, structured.Len())

	Warn("kept")
	assert.Contains(t, structured.String(), "kept")
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]slog.Level{
		"trace":   LevelTrace,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for name, want := range tests {
		assert.Equal(t, want, ParseLevel(name), name)
	}
}

func TestNewFileLoggerWritesJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "alerts.log")
	logger, closeFn, err := NewFileLogger(path, "notification", slog.LevelInfo, FileConfig{Rotation: RotationDaily})
	require.NoError(t, err)

	logger.Info("alert dispatched", "channel", "email")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var record map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &record))
	assert.Equal(t, "notification", record["service"])
	assert.Equal(t, "email", record["channel"])
}
