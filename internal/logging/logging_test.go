package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPaths(t *testing.T) {
	assert.Contains(t, DefaultLogDir(), ".artifactidx")
	assert.Equal(t, "artifactidx.log", filepath.Base(DefaultLogPath()))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
	assert.False(t, ValidLevel("bogus"))
	assert.True(t, ValidLevel("warn"))
}

func TestSetup_WritesJSONToFileAndStderr(t *testing.T) {
	// Given: a file-backed config mirroring to a buffer
	var stderr bytes.Buffer
	path := filepath.Join(t.TempDir(), "nested", "idx.log")
	logger, cleanup, err := Setup(Config{
		Level:         "debug",
		FilePath:      path,
		WriteToStderr: true,
		Stderr:        &stderr,
	})
	require.NoError(t, err)

	// When: logging a record
	logger.Debug("rescan_started", slog.String("context_id", "central"))
	cleanup()

	// Then: both sinks hold the same JSON line
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &rec))
	assert.Equal(t, "rescan_started", rec["msg"])
	assert.Equal(t, "central", rec["context_id"])
	assert.Equal(t, strings.TrimSpace(string(data)), strings.TrimSpace(stderr.String()))
}

func TestSetup_NoFileFallsBackToStderr(t *testing.T) {
	var stderr bytes.Buffer
	logger, cleanup, err := Setup(Config{Level: "warn", Stderr: &stderr})
	require.NoError(t, err)
	defer cleanup()

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, stderr.String(), "hidden")
	assert.Contains(t, stderr.String(), "shown")
}

func TestRotatingWriter_Rotates(t *testing.T) {
	// Given: a writer with a 1 MB limit and two kept files
	path := filepath.Join(t.TempDir(), "app.log")
	w, err := NewRotatingWriter(path, 1, 2)
	require.NoError(t, err)

	chunk := bytes.Repeat([]byte("x"), 600*1024)

	// When: writing enough to rotate three times
	for i := 0; i < 4; i++ {
		_, err := w.Write(chunk)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	// Then: at most maxFiles rotated files remain
	assert.FileExists(t, path)
	assert.FileExists(t, path+".1")
	assert.FileExists(t, path+".2")
	assert.NoFileExists(t, path+".3")
}

func TestRotatingWriter_CloseIdempotent(t *testing.T) {
	w, err := NewRotatingWriter(filepath.Join(t.TempDir(), "a.log"), 1, 1)
	require.NoError(t, err)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	_, err = w.Write([]byte("late"))
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() { Discard().Info("nothing") })
}
