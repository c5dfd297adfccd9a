// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MatchCut - 比赛录像剪辑与转码工具
//
// Package clip cuts highlight clips out of a match video and removes
// unwanted parts from it.

package clip

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ZSC714725/matchcut/internal/job"
	"github.com/ZSC714725/matchcut/internal/logger"
	"github.com/ZSC714725/matchcut/internal/media"
	"github.com/ZSC714725/matchcut/internal/progress"
	"github.com/ZSC714725/matchcut/internal/transcode"

	"github.com/lithammer/shortuuid/v4"
	"golang.org/x/sync/errgroup"
)

// Runner runs FFmpeg jobs
type Runner interface {
	Run(ctx context.Context, input transcode.Input, outputPath string, onProgress func(seconds float64)) error
	Probe(ctx context.Context, path string) (float64, error)
}

// Sink receives the samples of one clip, identified by its file name
type Sink func(target string, s progress.Sample)

// Commit records a replacement asset, e.g. in game.json. It runs before
// the original is deleted; when it fails the original stays and the
// replacement is removed.
type Commit func(replacement media.Asset) error

// Config for New
type Config struct {
	Runner   Runner
	Registry *job.Registry
	Logger   logger.Logger
	// TempDir receives intermediate segments of a cut
	TempDir string
}

// Service generates clips and rewrites assets
type Service struct {
	runner   Runner
	registry *job.Registry
	logger   logger.Logger
	tempDir  string
}

// New creates a Service
func New(config Config) (*Service, error) {
	if config.Runner == nil || config.Registry == nil {
		return nil, fmt.Errorf("clip service needs a runner and a job registry")
	}
	s := &Service{
		runner:   config.Runner,
		registry: config.Registry,
		logger:   config.Logger,
		tempDir:  config.TempDir,
	}
	if s.logger == nil {
		s.logger = logger.Discard()
	}
	if s.tempDir == "" {
		s.tempDir = os.TempDir()
	}
	return s, nil
}

// ClipName is the file name of the n-th clip, counting from 1
func ClipName(n int, ext string) string {
	return fmt.Sprintf("clip-%03d%s", n, ext)
}

// GenerateClips writes one clip per range into destDir, all at once. The
// first failure stops the others and removes every clip of the call.
func (s *Service) GenerateClips(ctx context.Context, asset media.Asset, ranges []media.Range, destDir string, sink Sink) ([]string, error) {
	if err := media.ValidateRanges(ranges); err != nil {
		return nil, err
	}

	ctx, end := s.registry.Begin(ctx)
	defer end()

	return s.generate(ctx, asset, ranges, destDir, sink)
}

func (s *Service) generate(ctx context.Context, asset media.Asset, ranges []media.Range, destDir string, sink Sink) ([]string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, media.Wrap(media.KindUnexpected, err, "creating clip folder")
	}

	ext := assetExt(asset)
	files := make([]string, len(ranges))
	for n := range ranges {
		files[n] = filepath.Join(destDir, ClipName(n+1, ext))
	}

	g, gctx := errgroup.WithContext(ctx)
	for n, r := range ranges {
		r := r
		out := files[n]
		name := filepath.Base(out)
		g.Go(func() error {
			tracker := progress.NewTracker(func(smp progress.Sample) {
				if sink != nil {
					sink(name, smp)
				}
			}, r.Duration(), name)

			if err := s.runner.Run(gctx, transcode.Trim{Source: asset.Path, Range: r}, out, tracker.Update); err != nil {
				return err
			}
			tracker.Done()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, f := range files {
			s.remove(f)
		}
		return nil, err
	}

	s.logger.Info("generated %d clip(s) of %s in %s", len(files), asset.Path, destDir)
	return files, nil
}

// CutAndReplace removes cuts from asset. The remaining parts are joined
// into a new file next to the original, which is deleted once commit
// succeeds. A nil commit records nothing.
func (s *Service) CutAndReplace(ctx context.Context, asset media.Asset, cuts []media.Range, sink progress.Sink, commit Commit) (media.Asset, error) {
	if err := media.ValidateRanges(cuts); err != nil {
		return media.Asset{}, err
	}

	ctx, end := s.registry.Begin(ctx)
	defer end()

	duration, err := s.runner.Probe(ctx, asset.Path)
	if err != nil {
		return media.Asset{}, err
	}
	keeps, err := media.KeepSegments(cuts, duration)
	if err != nil {
		return media.Asset{}, err
	}

	return s.replace(ctx, asset, keeps, sink, commit)
}

// KeepAndReplace keeps only the given segments of asset, in order
func (s *Service) KeepAndReplace(ctx context.Context, asset media.Asset, keeps []media.Range, sink progress.Sink, commit Commit) (media.Asset, error) {
	if err := media.ValidateRanges(keeps); err != nil {
		return media.Asset{}, err
	}

	ctx, end := s.registry.Begin(ctx)
	defer end()

	return s.replace(ctx, asset, keeps, sink, commit)
}

// replace trims every keep-segment to a temporary file, joins them into
// a new asset and deletes the original. Progress covers trimming and
// joining, each weighted by the kept duration.
func (s *Service) replace(ctx context.Context, asset media.Asset, keeps []media.Range, sink progress.Sink, commit Commit) (media.Asset, error) {
	if err := os.MkdirAll(s.tempDir, 0o755); err != nil {
		return media.Asset{}, media.Wrap(media.KindUnexpected, err, "creating temp dir")
	}

	ext := assetExt(asset)
	kept := media.TotalDuration(keeps)
	w := progress.NewWeighted(sink, 2*kept, len(keeps)+1, "")

	id := shortuuid.New()
	temps := make([]string, len(keeps))
	for n := range keeps {
		temps[n] = filepath.Join(s.tempDir, fmt.Sprintf("%s-part%03d%s", id, n+1, ext))
	}
	defer func() {
		for _, t := range temps {
			s.remove(t)
		}
	}()

	for n, k := range keeps {
		if err := s.runner.Run(ctx, transcode.Trim{Source: asset.Path, Range: k}, temps[n], w.Part(n, k.Duration())); err != nil {
			return media.Asset{}, err
		}
		w.Complete(n, k.Duration())
	}

	out := filepath.Join(filepath.Dir(asset.Path), "video-"+shortuuid.New()+ext)
	if err := s.runner.Run(ctx, transcode.Concat{Sources: temps}, out, w.Part(len(keeps), kept)); err != nil {
		return media.Asset{}, err
	}
	w.Complete(len(keeps), kept)

	replacement := media.NewAsset(out)
	if commit != nil {
		if err := commit(replacement); err != nil {
			s.remove(out)
			return media.Asset{}, media.Wrap(media.KindUnexpected, err, "recording "+out)
		}
	}

	if err := os.Remove(asset.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("remove replaced asset %s: %v", asset.Path, err)
	}

	w.Done()
	s.logger.Info("replaced %s with %s (%d segment(s), %.3fs kept)", asset.Path, out, len(keeps), kept)
	return replacement, nil
}

func (s *Service) remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("remove %s: %v", path, err)
	}
}

func assetExt(asset media.Asset) string {
	if asset.Ext != "" {
		return asset.Ext
	}
	return media.Ext(asset.Path)
}
