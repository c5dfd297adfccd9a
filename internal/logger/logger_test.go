package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWriter_Level(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter("importer", &buf, "warn")

	log.Info("hidden %d", 1)
	log.Warn("shown %d", 2)
	log.With("job_id", "abc").Error("failed %s", "trim")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown 2")
	assert.Contains(t, out, "component=importer")
	assert.Contains(t, out, "job_id=abc")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewWithConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matchcut.log")
	log, closer, err := NewWithConfig("api", Config{Level: "debug", File: path})
	require.NoError(t, err)

	log.Debug("diagnostic %s", "moov atom not found")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "moov atom not found")
}
