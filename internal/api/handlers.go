// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MatchCut - 比赛录像剪辑与转码工具

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync/atomic"

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
)

// Importer brings videos into game folders
type Importer interface {
	Import(ctx context.Context, src importer.Source, destDir string, sink progress.Sink) (media.Asset, error)
}

// Clipper cuts clips and rewrites assets
type Clipper interface {
	GenerateClips(ctx context.Context, asset media.Asset, ranges []media.Range, destDir string, sink clip.Sink) ([]string, error)
	CutAndReplace(ctx context.Context, asset media.Asset, cuts []media.Range, sink progress.Sink, commit clip.Commit) (media.Asset, error)
	ExportAll(ctx context.Context, batches []clip.Batch, destDir string, sink clip.Sink) ([]string, error)
}

// SkillsProvider reports FFmpeg capabilities
type SkillsProvider interface {
	Skills() (skills.Skills, error)
	ReloadSkills() error
}

// Deps of a Handler
type Deps struct {
	FFmpeg   SkillsProvider
	Registry *job.Registry
	Importer Importer
	Clips    Clipper
	Hub      *events.Hub
	Logger   logger.Logger
}

// Handler holds dependencies. It runs one operation at a time.
type Handler struct {
	ffmpeg   SkillsProvider
	registry *job.Registry
	importer Importer
	clips    Clipper
	hub      *events.Hub
	logger   logger.Logger
	busy     atomic.Bool
}

// NewHandler creates API handler
func NewHandler(deps Deps) *Handler {
	h := &Handler{
		ffmpeg:   deps.FFmpeg,
		registry: deps.Registry,
		importer: deps.Importer,
		clips:    deps.Clips,
		hub:      deps.Hub,
		logger:   deps.Logger,
	}
	if h.logger == nil {
		h.logger = logger.Discard()
	}
	if h.hub == nil {
		h.hub = events.NewHub(h.logger)
	}
	return h
}

// Register mounts the routes on r
func (h *Handler) Register(r gin.IRouter) {
	r.POST("/import", h.Import)
	r.POST("/cut", h.Cut)
	r.POST("/clips", h.Clips)
	r.POST("/export", h.Export)
	r.POST("/cancel", h.Cancel)

	r.GET("/progress", h.Progress)
	r.GET("/jobs", h.Jobs)
	r.GET("/skills", h.Skills)
	r.POST("/skills/reload", h.ReloadSkills)
}

func errResp(c *gin.Context, code int, msg, kind, detail string) {
	c.JSON(code, ErrorResponse{Code: code, Message: msg, Kind: kind, Detail: detail})
}

// fail maps err onto a status by its kind. Details of unexpected
// failures are logged, not returned.
func (h *Handler) fail(c *gin.Context, err error) {
	kind := media.KindOf(err)

	var detail string
	var e *media.Error
	if errors.As(err, &e) {
		detail = e.Body
	}

	switch kind {
	case media.KindInvalidRange:
		errResp(c, http.StatusBadRequest, "Invalid range", kind.String(), detail)
	case media.KindFormatMismatch:
		errResp(c, http.StatusBadRequest, "Videos have different formats", kind.String(), detail)
	case media.KindNoVideoSource:
		errResp(c, http.StatusBadRequest, "No video source", kind.String(), detail)
	case media.KindInsufficientSpace:
		errResp(c, http.StatusInsufficientStorage, "Not enough disk space", kind.String(), detail)
	case media.KindCancelled:
		errResp(c, http.StatusConflict, "Operation cancelled", kind.String(), "")
	default:
		h.logger.Error("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		errResp(c, http.StatusInternalServerError, "Unexpected failure", media.KindUnexpected.String(), "")
	}
}

// acquire claims the single operation slot
func (h *Handler) acquire(c *gin.Context) bool {
	if !h.busy.CompareAndSwap(false, true) {
		errResp(c, http.StatusConflict, "Another operation is running", "busy", "")
		return false
	}
	return true
}

func (h *Handler) release() {
	h.busy.Store(false)
}

// operationContext detaches the operation from the request, so only
// POST /cancel stops it
func operationContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

func bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		var e *media.Error
		if errors.As(err, &e) {
			errResp(c, http.StatusBadRequest, "Invalid range", e.Kind.String(), e.Body)
			return false
		}
		errResp(c, http.StatusBadRequest, "Invalid JSON", "bad_request", err.Error())
		return false
	}
	return true
}

func (h *Handler) sink(operation, target string) progress.Sink {
	publish := h.hub.Sink(operation)
	return func(s progress.Sample) {
		publish(target, s)
	}
}

// Import POST /api/v1/import
func (h *Handler) Import(c *gin.Context) {
	var req ImportRequest
	if !bind(c, &req) {
		return
	}
	if !h.acquire(c) {
		return
	}
	defer h.release()

	src := importer.Source{Kind: req.Kind, Paths: req.Paths, Links: req.Links}
	asset, err := h.importer.Import(operationContext(c), src, req.GameDir, h.sink("import", req.GameDir))
	if err != nil {
		h.fail(c, err)
		return
	}

	if err := game.SetVideoPath(req.GameDir, asset.Path); err != nil {
		// the video stays in place, the log keeps its path
		h.fail(c, media.Wrap(media.KindUnexpected, err, "recording "+asset.Path+" in "+game.FileName))
		return
	}

	h.logger.Info("imported %s", asset.Path)
	c.JSON(http.StatusOK, VideoResponse{VideoPath: asset.Path})
}

// Cut POST /api/v1/cut
func (h *Handler) Cut(c *gin.Context) {
	var req CutRequest
	if !bind(c, &req) {
		return
	}

	path, err := game.VideoPath(req.GameDir)
	if errors.Is(err, game.ErrNoVideo) || errors.Is(err, os.ErrNotExist) {
		h.fail(c, media.NoVideoSource("%s has no video", req.GameDir))
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	if !h.acquire(c) {
		return
	}
	defer h.release()

	// game.json points at the new video before the old one is deleted
	commit := func(replacement media.Asset) error {
		return game.SetVideoPath(req.GameDir, replacement.Path)
	}
	asset, err := h.clips.CutAndReplace(operationContext(c), media.NewAsset(path), req.Cuts, h.sink("cut", req.GameDir), commit)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, VideoResponse{VideoPath: asset.Path})
}

// Clips POST /api/v1/clips
func (h *Handler) Clips(c *gin.Context) {
	var req ClipsRequest
	if !bind(c, &req) {
		return
	}
	if !h.acquire(c) {
		return
	}
	defer h.release()

	files, err := h.clips.GenerateClips(operationContext(c), media.NewAsset(req.VideoPath), req.Ranges, req.DestDir, h.hub.Sink("clips"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, FilesResponse{Files: files})
}

// Export POST /api/v1/export
func (h *Handler) Export(c *gin.Context) {
	var req ExportRequest
	if !bind(c, &req) {
		return
	}
	if !h.acquire(c) {
		return
	}
	defer h.release()

	batches := make([]clip.Batch, len(req.Games))
	for i, g := range req.Games {
		batches[i] = clip.Batch{Name: g.Name, Asset: media.NewAsset(g.VideoPath), Ranges: g.Ranges}
	}

	files, err := h.clips.ExportAll(operationContext(c), batches, req.DestDir, h.hub.Sink("export"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, FilesResponse{Files: files})
}

// Cancel POST /api/v1/cancel
func (h *Handler) Cancel(c *gin.Context) {
	if err := h.registry.CancelAll(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, "OK")
}

// Progress GET /api/v1/progress streams events as server-sent events
func (h *Handler) Progress(c *gin.Context) {
	sub := h.hub.Subscribe(64)
	defer h.hub.Unsubscribe(sub)

	// 先发送响应头，客户端无需等待第一条事件
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case e, ok := <-sub:
			if !ok {
				return false
			}
			c.SSEvent("progress", e)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// Jobs GET /api/v1/jobs
func (h *Handler) Jobs(c *gin.Context) {
	c.JSON(http.StatusOK, h.registry.List())
}

// Skills GET /api/v1/skills
func (h *Handler) Skills(c *gin.Context) {
	sk, err := h.ffmpeg.Skills()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, skillsToAPI(sk))
}

// ReloadSkills POST /api/v1/skills/reload
func (h *Handler) ReloadSkills(c *gin.Context) {
	if err := h.ffmpeg.ReloadSkills(); err != nil {
		h.fail(c, err)
		return
	}
	h.Skills(c)
}
