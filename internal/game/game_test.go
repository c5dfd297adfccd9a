package game

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetVideoPath_KeepsOtherFields(t *testing.T) {
	dir := t.TempDir()
	orig := `{
  "information": {"homeTeam": "Ajax", "videoPath": "/old/video.mp4", "score": [2, 1]},
  "events": [{"t": 12.5, "type": "goal"}]
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(orig), 0o644))

	require.NoError(t, SetVideoPath(dir, "/games/ajax/video-abc.mp4"))

	p, err := VideoPath(dir)
	require.NoError(t, err)
	assert.Equal(t, "/games/ajax/video-abc.mp4", p)

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	var doc struct {
		Information map[string]any   `json:"information"`
		Events      []map[string]any `json:"events"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "Ajax", doc.Information["homeTeam"])
	assert.Equal(t, []any{2.0, 1.0}, doc.Information["score"])
	require.Len(t, doc.Events, 1)
	assert.Equal(t, "goal", doc.Events[0]["type"])

	// no temp files left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSetVideoPath_CreatesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, SetVideoPath(dir, "/v.webm"))

	p, err := VideoPath(dir)
	require.NoError(t, err)
	assert.Equal(t, "/v.webm", p)
}

func TestVideoPath_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := VideoPath(dir)
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(`{"information":{}}`), 0o644))
	_, err = VideoPath(dir)
	assert.ErrorIs(t, err, ErrNoVideo)

	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(`{"information":`), 0o644))
	_, err = VideoPath(dir)
	assert.Error(t, err)
}
