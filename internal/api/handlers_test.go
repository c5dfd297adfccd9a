package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ZSC714725/matchcut/internal/clip"
	"github.com/ZSC714725/matchcut/internal/events"
	"github.com/ZSC714725/matchcut/internal/ffmpeg/skills"
	"github.com/ZSC714725/matchcut/internal/game"
	"github.com/ZSC714725/matchcut/internal/importer"
	"github.com/ZSC714725/matchcut/internal/job"
	"github.com/ZSC714725/matchcut/internal/logger"
	"github.com/ZSC714725/matchcut/internal/media"
	"github.com/ZSC714725/matchcut/internal/progress"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeImporter struct {
	asset   media.Asset
	err     error
	block   chan struct{}
	started chan struct{}
	got     importer.Source
}

func (f *fakeImporter) Import(ctx context.Context, src importer.Source, destDir string, sink progress.Sink) (media.Asset, error) {
	f.got = src
	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		<-f.block
	}
	if sink != nil {
		sink(progress.Sample{PercentageDone: 100})
	}
	return f.asset, f.err
}

type fakeClipper struct {
	cutAsset media.Asset
	files    []string
	err      error
	batches  []clip.Batch
	cuts     []media.Range
}

func (f *fakeClipper) GenerateClips(_ context.Context, _ media.Asset, ranges []media.Range, _ string, _ clip.Sink) ([]string, error) {
	if err := media.ValidateRanges(ranges); err != nil {
		return nil, err
	}
	return f.files, f.err
}

func (f *fakeClipper) CutAndReplace(_ context.Context, _ media.Asset, cuts []media.Range, _ progress.Sink, commit clip.Commit) (media.Asset, error) {
	f.cuts = cuts
	if f.err != nil {
		return media.Asset{}, f.err
	}
	if err := commit(f.cutAsset); err != nil {
		return media.Asset{}, media.Wrap(media.KindUnexpected, err, "recording "+f.cutAsset.Path)
	}
	return f.cutAsset, nil
}

func (f *fakeClipper) ExportAll(_ context.Context, batches []clip.Batch, _ string, _ clip.Sink) ([]string, error) {
	f.batches = batches
	return f.files, f.err
}

type fakeSkills struct{ sk skills.Skills }

func (f *fakeSkills) Skills() (skills.Skills, error) { return f.sk, nil }
func (f *fakeSkills) ReloadSkills() error            { return nil }

// logBuffer collects handler logs
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fixture struct {
	logs     *logBuffer
	router   *gin.Engine
	importer *fakeImporter
	clips    *fakeClipper
	registry *job.Registry
	hub      *events.Hub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fixture{
		logs:     &logBuffer{},
		importer: &fakeImporter{},
		clips:    &fakeClipper{},
		registry: job.NewRegistry(50*time.Millisecond, logger.Discard()),
		hub:      events.NewHub(nil),
	}
	t.Cleanup(f.hub.Close)

	sk := skills.Skills{}
	sk.FFmpeg.Version = "7.1"
	sk.Formats.Demuxers = []skills.Format{{Id: "concat"}, {Id: "mov"}}

	h := NewHandler(Deps{
		FFmpeg:   &fakeSkills{sk: sk},
		Registry: f.registry,
		Importer: f.importer,
		Clips:    f.clips,
		Hub:      f.hub,
		Logger:   logger.NewWriter("", f.logs, "debug"),
	})
	f.router = gin.New()
	h.Register(f.router.Group("/api/v1"))
	return f
}

func (f *fixture) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestImport(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, game.FileName), []byte(`{"information":{"homeTeam":"Ajax"}}`), 0o644))
	f.importer.asset = media.NewAsset(filepath.Join(dir, "video.mp4"))

	w := f.do(http.MethodPost, "/api/v1/import", ImportRequest{GameDir: dir, Kind: importer.SourceFile, Paths: []string{"/in/a.mp4"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp VideoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, filepath.Join(dir, "video.mp4"), resp.VideoPath)
	assert.Equal(t, []string{"/in/a.mp4"}, f.importer.got.Paths)

	p, err := game.VideoPath(dir)
	require.NoError(t, err)
	assert.Equal(t, resp.VideoPath, p)
}

func TestImport_RecordFailureLogsVideo(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	// game.json cannot be read or replaced
	require.NoError(t, os.Mkdir(filepath.Join(dir, game.FileName), 0o755))
	f.importer.asset = media.NewAsset(filepath.Join(dir, "video.mp4"))

	w := f.do(http.MethodPost, "/api/v1/import", ImportRequest{GameDir: dir, Kind: importer.SourceFile, Paths: []string{"/in/a.mp4"}})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "unexpected", decodeError(t, w).Kind)
	assert.Contains(t, f.logs.String(), filepath.Join(dir, "video.mp4"))
}

func TestImport_ErrorKinds(t *testing.T) {
	for _, tc := range []struct {
		err    error
		status int
		kind   string
		detail string
	}{
		{media.FormatMismatch("b.mkv"), http.StatusBadRequest, "format_mismatch", "b.mkv"},
		{media.NoVideoSource("nothing"), http.StatusBadRequest, "no_video_source", "nothing"},
		{media.InsufficientSpace("4 GiB needed"), http.StatusInsufficientStorage, "insufficient_space", "4 GiB needed"},
		{media.Cancelled("copy"), http.StatusConflict, "cancelled", ""},
		{media.Wrap(media.KindUnexpected, errors.New("exit status 1"), "ffmpeg said no"), http.StatusInternalServerError, "unexpected", ""},
		{errors.New("plain"), http.StatusInternalServerError, "unexpected", ""},
	} {
		t.Run(tc.kind, func(t *testing.T) {
			f := newFixture(t)
			f.importer.err = tc.err

			w := f.do(http.MethodPost, "/api/v1/import", ImportRequest{GameDir: t.TempDir(), Kind: importer.SourceFile})
			assert.Equal(t, tc.status, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, tc.kind, resp.Kind)
			assert.Equal(t, tc.detail, resp.Detail)
			assert.NotContains(t, w.Body.String(), "ffmpeg said no")
		})
	}
}

func TestImport_BadRequest(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodPost, "/api/v1/import", `{"kind": "file"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "bad_request", decodeError(t, w).Kind)
}

func TestBusy(t *testing.T) {
	f := newFixture(t)
	f.importer.block = make(chan struct{})
	f.importer.started = make(chan struct{})
	f.importer.asset = media.NewAsset(filepath.Join(t.TempDir(), "video.mp4"))
	dir := t.TempDir()

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- f.do(http.MethodPost, "/api/v1/import", ImportRequest{GameDir: dir, Kind: importer.SourceFile})
	}()
	<-f.importer.started

	w := f.do(http.MethodPost, "/api/v1/clips", ClipsRequest{VideoPath: "/v.mp4", DestDir: "/out", Ranges: []media.Range{{Start: 0, End: 1}}})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "busy", decodeError(t, w).Kind)

	close(f.importer.block)
	assert.Equal(t, http.StatusOK, (<-done).Code)

	// slot released
	w = f.do(http.MethodPost, "/api/v1/clips", ClipsRequest{VideoPath: "/v.mp4", DestDir: "/out", Ranges: []media.Range{{Start: 0, End: 1}}})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCut(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()

	w := f.do(http.MethodPost, "/api/v1/cut", `{"game_dir": "`+dir+`", "cuts": [[10, 20]]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "no_video_source", decodeError(t, w).Kind)

	require.NoError(t, game.SetVideoPath(dir, filepath.Join(dir, "video.mp4")))
	f.clips.cutAsset = media.NewAsset(filepath.Join(dir, "video-abc.mp4"))

	w = f.do(http.MethodPost, "/api/v1/cut", `{"game_dir": "`+dir+`", "cuts": [[10, 20], {"start": 40, "end": 50}]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []media.Range{{Start: 10, End: 20}, {Start: 40, End: 50}}, f.clips.cuts)

	p, err := game.VideoPath(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "video-abc.mp4"), p)
}

func TestCut_MalformedRange(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	require.NoError(t, game.SetVideoPath(dir, filepath.Join(dir, "video.mp4")))

	w := f.do(http.MethodPost, "/api/v1/cut", `{"game_dir": "`+dir+`", "cuts": [[10]]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_range", decodeError(t, w).Kind)
}

func TestClips(t *testing.T) {
	f := newFixture(t)
	f.clips.files = []string{"/out/clip-001.mp4"}

	w := f.do(http.MethodPost, "/api/v1/clips", ClipsRequest{VideoPath: "/v.mp4", DestDir: "/out", Ranges: []media.Range{{Start: 0, End: 1}}})
	require.Equal(t, http.StatusOK, w.Code)
	var resp FilesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"/out/clip-001.mp4"}, resp.Files)

	w = f.do(http.MethodPost, "/api/v1/clips", ClipsRequest{VideoPath: "/v.mp4", DestDir: "/out", Ranges: []media.Range{{Start: 5, End: 1}}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_range", decodeError(t, w).Kind)
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	f.clips.files = []string{"/out/Ajax/clip-001.mp4"}

	w := f.do(http.MethodPost, "/api/v1/export", ExportRequest{DestDir: "/out", Games: []ExportGame{
		{Name: "Ajax", VideoPath: "/games/ajax/video.mp4", Ranges: []media.Range{{Start: 1, End: 2}}},
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, f.clips.batches, 1)
	assert.Equal(t, ".mp4", f.clips.batches[0].Asset.Ext)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	killed := make(chan struct{})
	f.registry.Register(job.KindTrim, "", func() error {
		close(killed)
		return nil
	})

	w := f.do(http.MethodPost, "/api/v1/cancel", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `"OK"`, w.Body.String())
	<-killed
	assert.Zero(t, f.registry.Len())

	// nothing to cancel
	w = f.do(http.MethodPost, "/api/v1/cancel", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestJobs(t *testing.T) {
	f := newFixture(t)
	f.registry.Register(job.KindDownload, "/tmp/video.mp4.part", nil)

	w := f.do(http.MethodGet, "/api/v1/jobs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var jobs []job.Info
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, job.KindDownload, jobs[0].Kind)
}

func TestSkills(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/api/v1/skills", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp SkillsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "7.1", resp.FFmpeg.Version)
	assert.False(t, resp.Ready)
	assert.Contains(t, resp.Problem, "mp4 muxer")
}

func TestProgress_SSE(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/progress", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 16)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	// the subscription may not exist yet, so publish until something arrives
	publish := f.hub.Sink("clips")
	deadline := time.After(5 * time.Second)
	for {
		publish("clip-001.mp4", progress.Sample{PercentageDone: 42, RemainingSeconds: 7})
		select {
		case line := <-lines:
			if strings.HasPrefix(line, "data:") {
				assert.Contains(t, line, `"operation":"clips"`)
				assert.Contains(t, line, `"target":"clip-001.mp4"`)
				assert.Contains(t, line, `"percentage_done":42`)
				return
			}
		case <-deadline:
			t.Fatal("no event received")
		case <-time.After(20 * time.Millisecond):
		}
	}
}
