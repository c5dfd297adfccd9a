// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MatchCut - 比赛录像剪辑与转码工具
//
// Package importer brings a match video into a game folder, from local
// files or from hosted match links.

package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZSC714725/matchcut/internal/job"
	"github.com/ZSC714725/matchcut/internal/logger"
	"github.com/ZSC714725/matchcut/internal/media"
	"github.com/ZSC714725/matchcut/internal/progress"
	"github.com/ZSC714725/matchcut/internal/space"
	"github.com/ZSC714725/matchcut/internal/transcode"

	"github.com/lithammer/shortuuid/v4"
)

// SourceKind tells where an import reads from
type SourceKind string

const (
	SourceFile SourceKind = "file"
	SourceVeo  SourceKind = "veo"
)

// Source of an import. Paths are used for SourceFile, Links for
// SourceVeo.
type Source struct {
	Kind  SourceKind `json:"kind"`
	Paths []string   `json:"paths,omitempty"`
	Links []string   `json:"links,omitempty"`
}

// DefaultNativeExtensions can be played without conversion
var DefaultNativeExtensions = []string{".mp4", ".webm", ".ogg"}

// halfLabels name the two halves of a match in progress samples
var halfLabels = []string{"first half", "second half"}

// Runner runs FFmpeg jobs
type Runner interface {
	Run(ctx context.Context, input transcode.Input, outputPath string, onProgress func(seconds float64)) error
	Probe(ctx context.Context, path string) (float64, error)
}

// Downloader fetches hosted videos
type Downloader interface {
	ResolveDirectURL(ctx context.Context, pageURL string) (string, error)
	DownloadToPath(ctx context.Context, url, dest string, sink progress.Sink, label string) error
}

// Config for New
type Config struct {
	Runner     Runner
	Downloader Downloader
	Space      space.Checker
	Registry   *job.Registry
	Logger     logger.Logger
	// NativeExtensions are copied as they are, everything else is
	// remuxed to .mp4
	NativeExtensions []string
	// MinFreeBytes is required on the destination before a download,
	// whose size is unknown up front
	MinFreeBytes uint64
	TempDir      string
}

// Importer produces the canonical asset of a game
type Importer struct {
	runner       Runner
	downloader   Downloader
	space        space.Checker
	registry     *job.Registry
	logger       logger.Logger
	native       map[string]bool
	minFreeBytes uint64
	tempDir      string
}

// New creates an Importer
func New(config Config) (*Importer, error) {
	if config.Runner == nil || config.Downloader == nil || config.Registry == nil {
		return nil, fmt.Errorf("importer needs a runner, a downloader and a job registry")
	}

	i := &Importer{
		runner:       config.Runner,
		downloader:   config.Downloader,
		space:        config.Space,
		registry:     config.Registry,
		logger:       config.Logger,
		native:       map[string]bool{},
		minFreeBytes: config.MinFreeBytes,
		tempDir:      config.TempDir,
	}
	if i.space == nil {
		i.space = space.New()
	}
	if i.logger == nil {
		i.logger = logger.Discard()
	}
	if i.tempDir == "" {
		i.tempDir = os.TempDir()
	}

	exts := config.NativeExtensions
	if len(exts) == 0 {
		exts = DefaultNativeExtensions
	}
	for _, ext := range exts {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		i.native[ext] = true
	}
	return i, nil
}

// CanonicalPath is where the asset of a game with extension ext lives
func CanonicalPath(destDir, ext string) string {
	return filepath.Join(destDir, "video"+ext)
}

// Import brings src into destDir and returns the resulting asset
func (i *Importer) Import(ctx context.Context, src Source, destDir string, sink progress.Sink) (media.Asset, error) {
	ctx, end := i.registry.Begin(ctx)
	defer end()

	switch {
	case src.Kind == SourceFile && len(src.Paths) > 0:
		return i.importFiles(ctx, src.Paths, destDir, sink)
	case src.Kind == SourceVeo && len(src.Links) == 1:
		return i.importLink(ctx, src.Links[0], destDir, sink)
	case src.Kind == SourceVeo && len(src.Links) == 2:
		return i.importHalves(ctx, src.Links, destDir, sink)
	default:
		return media.Asset{}, media.NoVideoSource("nothing to import from %q source with %d path(s) and %d link(s)",
			src.Kind, len(src.Paths), len(src.Links))
	}
}

func (i *Importer) importFiles(ctx context.Context, paths []string, destDir string, sink progress.Sink) (media.Asset, error) {
	// fail fast, before touching the disk
	if bad, ok := media.SameExt(paths); !ok {
		return media.Asset{}, media.FormatMismatch("%s does not match %s", bad, media.Ext(paths[0]))
	}

	var required uint64
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return media.Asset{}, media.NoVideoSource("%s: %v", p, err)
		}
		if info.IsDir() {
			return media.Asset{}, media.NoVideoSource("%s is a directory", p)
		}
		required += uint64(info.Size())
	}
	if err := i.space.Ensure(destDir, required); err != nil {
		return media.Asset{}, err
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return media.Asset{}, media.Wrap(media.KindUnexpected, err, "creating game folder")
	}

	ext := media.Ext(paths[0])
	if len(paths) == 1 && i.native[ext] {
		dest := CanonicalPath(destDir, ext)
		if err := i.copy(ctx, paths[0], dest, required, sink); err != nil {
			return media.Asset{}, err
		}
		return media.NewAsset(dest), nil
	}

	if !i.native[ext] {
		ext = ".mp4"
	}
	dest := CanonicalPath(destDir, ext)
	if err := i.concat(ctx, paths, dest, sink, ""); err != nil {
		return media.Asset{}, err
	}
	return media.NewAsset(dest), nil
}

func (i *Importer) importLink(ctx context.Context, link, destDir string, sink progress.Sink) (media.Asset, error) {
	direct, err := i.downloader.ResolveDirectURL(ctx, link)
	if err != nil {
		return media.Asset{}, err
	}
	if err := i.space.Ensure(destDir, i.minFreeBytes); err != nil {
		return media.Asset{}, err
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return media.Asset{}, media.Wrap(media.KindUnexpected, err, "creating game folder")
	}

	dest := CanonicalPath(destDir, ".mp4")
	if err := i.downloader.DownloadToPath(ctx, direct, dest, sink, ""); err != nil {
		return media.Asset{}, err
	}
	return media.NewAsset(dest), nil
}

func (i *Importer) importHalves(ctx context.Context, links []string, destDir string, sink progress.Sink) (media.Asset, error) {
	direct := make([]string, len(links))
	for n, link := range links {
		u, err := i.downloader.ResolveDirectURL(ctx, link)
		if err != nil {
			return media.Asset{}, err
		}
		direct[n] = u
	}
	if err := i.space.Ensure(destDir, i.minFreeBytes); err != nil {
		return media.Asset{}, err
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return media.Asset{}, media.Wrap(media.KindUnexpected, err, "creating game folder")
	}
	if err := os.MkdirAll(i.tempDir, 0o755); err != nil {
		return media.Asset{}, media.Wrap(media.KindUnexpected, err, "creating temp dir")
	}

	id := shortuuid.New()
	temps := make([]string, len(direct))
	for n := range direct {
		temps[n] = filepath.Join(i.tempDir, fmt.Sprintf("%s-half%d.mp4", id, n+1))
	}
	defer func() {
		for _, t := range temps {
			i.remove(t)
		}
	}()

	for n, u := range direct {
		if err := i.downloader.DownloadToPath(ctx, u, temps[n], sink, halfLabels[n]); err != nil {
			return media.Asset{}, err
		}
	}

	dest := CanonicalPath(destDir, ".mp4")
	if err := i.concat(ctx, temps, dest, sink, "joining halves"); err != nil {
		return media.Asset{}, err
	}
	return media.NewAsset(dest), nil
}

// concat joins paths into dest with progress against their summed
// duration
func (i *Importer) concat(ctx context.Context, paths []string, dest string, sink progress.Sink, label string) error {
	var total float64
	for _, p := range paths {
		d, err := i.runner.Probe(ctx, p)
		if err != nil {
			return err
		}
		total += d
	}

	tracker := progress.NewTracker(sink, total, label)
	if err := i.runner.Run(ctx, transcode.Concat{Sources: paths}, dest, tracker.Update); err != nil {
		return err
	}
	tracker.Done()
	return nil
}

// copy duplicates src into dest as a registered, cancellable job
func (i *Importer) copy(ctx context.Context, src, dest string, size uint64, sink progress.Sink) error {
	if same, _ := samePath(src, dest); same {
		progress.NewTracker(sink, 0, "").Done()
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	j := i.registry.Register(job.KindCopy, dest, func() error {
		cancel()
		return nil
	})
	defer i.registry.Deregister(j)

	tracker := progress.NewTracker(sink, float64(size), "")
	err := copyFile(ctx, src, dest, tracker.Update)
	if err != nil {
		i.remove(dest)
		if j.Cancelled() || ctx.Err() != nil {
			return media.Cancelled("copy of " + src)
		}
		return media.Wrap(media.KindUnexpected, err, "copying "+src)
	}

	tracker.Done()
	return nil
}

func (i *Importer) remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		i.logger.Warn("remove %s: %v", path, err)
	}
}

// copyFile copies src to dest in chunks, reporting the bytes written and
// stopping when ctx is done
func copyFile(ctx context.Context, src, dest string, onProgress func(float64)) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}

	buf := make([]byte, 1<<20)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			out.Close()
			return err
		}
		n, rerr := in.Read(buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				out.Close()
				return err
			}
			written += int64(n)
			onProgress(float64(written))
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			out.Close()
			return rerr
		}
	}

	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func samePath(a, b string) (bool, error) {
	ia, err := os.Stat(a)
	if err != nil {
		return false, err
	}
	ib, err := os.Stat(b)
	if err != nil {
		return false, err
	}
	return os.SameFile(ia, ib), nil
}
