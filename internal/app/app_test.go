package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ZSC714725/matchcut/internal/config"
	"github.com/ZSC714725/matchcut/internal/ffmpeg/ffmpegtest"
	"github.com/ZSC714725/matchcut/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(t *testing.T) *App {
	t.Helper()
	gin.SetMode(gin.TestMode)
	fake := ffmpegtest.New(t, 10)

	cfg := config.Default()
	cfg.FFmpeg.Path = fake.Binary
	cfg.FFmpeg.ProbePath = fake.ProbeBinary
	cfg.Paths.TempDir = filepath.Join(t.TempDir(), "tmp")

	a, err := New(cfg, logger.Discard())
	require.NoError(t, err)
	return a
}

func TestNew_Wires(t *testing.T) {
	a := newApp(t)

	w := httptest.NewRecorder()
	a.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestNew_BadBinary(t *testing.T) {
	cfg := config.Default()
	cfg.FFmpeg.Path = filepath.Join(t.TempDir(), "missing-ffmpeg")
	_, err := New(cfg, nil)
	assert.ErrorContains(t, err, "ffmpeg init")
}

func TestNew_BadInputPattern(t *testing.T) {
	cfg := config.Default()
	cfg.FFmpeg.InputBlock = []string{"("}
	_, err := New(cfg, nil)
	assert.ErrorContains(t, err, "input validator")
}

func TestServe_StopsOnCancel(t *testing.T) {
	a := newApp(t)
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() { errc <- a.Serve(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return")
	}
}
