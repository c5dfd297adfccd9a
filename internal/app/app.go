// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MatchCut - 比赛录像剪辑与转码工具
//
// Package app wires the components shared by the server and the CLI.

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ZSC714725/matchcut/internal/api"
	"github.com/ZSC714725/matchcut/internal/clip"
	"github.com/ZSC714725/matchcut/internal/config"
	"github.com/ZSC714725/matchcut/internal/events"
	"github.com/ZSC714725/matchcut/internal/ffmpeg"
	"github.com/ZSC714725/matchcut/internal/fetch"
	"github.com/ZSC714725/matchcut/internal/importer"
	"github.com/ZSC714725/matchcut/internal/job"
	"github.com/ZSC714725/matchcut/internal/logger"
	"github.com/ZSC714725/matchcut/internal/space"
	"github.com/ZSC714725/matchcut/internal/transcode"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// App holds the wired components
type App struct {
	Config   *config.Config
	FFmpeg   ffmpeg.FFmpeg
	Registry *job.Registry
	Executor *transcode.Executor
	Fetcher  *fetch.Fetcher
	Importer *importer.Importer
	Clips    *clip.Service
	Hub      *events.Hub
	Logger   logger.Logger
}

// New builds an App from cfg
func New(cfg *config.Config, log logger.Logger) (*App, error) {
	if log == nil {
		log = logger.Discard()
	}

	inputBlock := cfg.FFmpeg.InputBlock
	if len(inputBlock) == 0 {
		inputBlock = ffmpeg.DefaultBlock
	}
	validatorIn, err := ffmpeg.NewValidator(cfg.FFmpeg.InputAllow, inputBlock)
	if err != nil {
		return nil, fmt.Errorf("input validator: %w", err)
	}
	validatorOut, err := ffmpeg.NewValidator(nil, ffmpeg.DefaultBlock)
	if err != nil {
		return nil, fmt.Errorf("output validator: %w", err)
	}

	ff, err := ffmpeg.New(ffmpeg.Config{
		Binary:          cfg.FFmpeg.Path,
		ProbeBinary:     cfg.FFmpeg.ProbePath,
		MaxLogLines:     cfg.FFmpeg.MaxLogLines,
		ValidatorInput:  validatorIn,
		ValidatorOutput: validatorOut,
	})
	if err != nil {
		return nil, fmt.Errorf("ffmpeg init: %w", err)
	}

	registry := job.NewRegistry(cfg.CancelGrace(), log.With("module", "jobs"))

	executor, err := transcode.New(transcode.Config{
		FFmpeg:       ff,
		Registry:     registry,
		Logger:       log.With("module", "transcode"),
		StaleTimeout: cfg.StaleTimeout(),
		TempDir:      cfg.Paths.TempDir,
	})
	if err != nil {
		return nil, err
	}

	fetcher, err := fetch.New(fetch.Config{
		SourcePattern: cfg.Fetch.SourcePattern,
		Timeout:       cfg.FetchTimeout(),
		Registry:      registry,
		Logger:        log.With("module", "fetch"),
	})
	if err != nil {
		return nil, err
	}

	imp, err := importer.New(importer.Config{
		Runner:           executor,
		Downloader:       fetcher,
		Space:            space.New(),
		Registry:         registry,
		Logger:           log.With("module", "import"),
		NativeExtensions: cfg.Import.NativeExtensions,
		MinFreeBytes:     cfg.Space.MinFreeBytes,
		TempDir:          cfg.Paths.TempDir,
	})
	if err != nil {
		return nil, err
	}

	clips, err := clip.New(clip.Config{
		Runner:   executor,
		Registry: registry,
		Logger:   log.With("module", "clip"),
		TempDir:  cfg.Paths.TempDir,
	})
	if err != nil {
		return nil, err
	}

	return &App{
		Config:   cfg,
		FFmpeg:   ff,
		Registry: registry,
		Executor: executor,
		Fetcher:  fetcher,
		Importer: imp,
		Clips:    clips,
		Hub:      events.NewHub(log.With("module", "events")),
		Logger:   log,
	}, nil
}

// Router returns the HTTP API
func (a *App) Router() *gin.Engine {
	handler := api.NewHandler(api.Deps{
		FFmpeg:   a.FFmpeg,
		Registry: a.Registry,
		Importer: a.Importer,
		Clips:    a.Clips,
		Hub:      a.Hub,
		Logger:   a.Logger.With("module", "api"),
	})

	r := gin.New()
	r.Use(gin.Recovery(), cors.Default())
	handler.Register(r.Group("/api/v1"))
	return r
}

// Serve runs the HTTP API on bind until ctx is done. Running jobs are
// cancelled on the way out.
func (a *App) Serve(ctx context.Context, bind string) error {
	srv := &http.Server{Addr: bind, Handler: a.Router()}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.Info("MatchCut listening on %s", bind)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		if err := a.Registry.CancelAll(context.Background()); err != nil {
			a.Logger.Warn("cancel on shutdown: %v", err)
		}
		// ends open progress streams
		a.Hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
