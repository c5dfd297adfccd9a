// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MatchCut - 比赛录像剪辑与转码工具
//
// Package fetch resolves hosted match pages to direct video URLs and
// downloads them.

package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/ZSC714725/matchcut/internal/job"
	"github.com/ZSC714725/matchcut/internal/logger"
	"github.com/ZSC714725/matchcut/internal/media"
	"github.com/ZSC714725/matchcut/internal/progress"
)

// DefaultSourcePattern matches Veo CDN video files in a match page
const DefaultSourcePattern = `https://c\.veocdn\.com/[A-Za-z0-9_\-/.]+?\.mp4`

const (
	defaultTimeout = 30 * time.Second
	// page bodies beyond this are not searched
	maxPageBytes = 8 << 20
)

// ErrDownloadActive is wrapped when a download is requested while another
// one is running
var ErrDownloadActive = errors.New("another download is in progress")

// Config for New
type Config struct {
	// SourcePattern finds the direct URL in a page. Empty uses
	// DefaultSourcePattern.
	SourcePattern string
	// Timeout bounds page resolution. Downloads are bounded by their
	// context only.
	Timeout  time.Duration
	Registry *job.Registry
	Logger   logger.Logger
	// Client overrides the HTTP client, e.g. in tests
	Client *http.Client
}

// Fetcher downloads remote videos. It runs at most one download at a
// time.
type Fetcher struct {
	client   *http.Client
	pattern  *regexp.Regexp
	timeout  time.Duration
	registry *job.Registry
	logger   logger.Logger
	active   atomic.Bool
}

// New creates a Fetcher
func New(config Config) (*Fetcher, error) {
	if config.Registry == nil {
		return nil, fmt.Errorf("no job registry given")
	}

	expr := config.SourcePattern
	if expr == "" {
		expr = DefaultSourcePattern
	}
	pattern, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid source pattern: %w", err)
	}

	f := &Fetcher{
		client:   config.Client,
		pattern:  pattern,
		timeout:  config.Timeout,
		registry: config.Registry,
		logger:   config.Logger,
	}
	if f.client == nil {
		f.client = &http.Client{}
	}
	if f.timeout <= 0 {
		f.timeout = defaultTimeout
	}
	if f.logger == nil {
		f.logger = logger.Discard()
	}
	return f, nil
}

// ResolveDirectURL loads pageURL and returns the first direct video URL
// found in it
func (f *Fetcher) ResolveDirectURL(ctx context.Context, pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", media.NoVideoSource("%q is not a web link", pageURL)
	}

	parent := ctx
	ctx, cancel := context.WithTimeout(parent, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", media.Wrap(media.KindUnexpected, err, "building request")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", resolveError(parent, err, "loading "+pageURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", media.NewError(media.KindUnexpected, fmt.Sprintf("loading %s: HTTP %d", pageURL, resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", resolveError(parent, err, "reading "+pageURL)
	}

	direct := f.pattern.Find(body)
	if direct == nil {
		return "", media.NoVideoSource("no video found at %s", pageURL)
	}

	f.logger.Debug("resolved %s to %s", pageURL, direct)
	return string(direct), nil
}

// resolveError reports a cancelled caller as Cancelled. Our own timeout
// stays Unexpected.
func resolveError(parent context.Context, err error, body string) error {
	if parent.Err() != nil {
		return media.Cancelled(body)
	}
	return media.Wrap(media.KindUnexpected, err, body)
}

// DownloadToPath streams src into dest. The body is written to
// dest+".part" and renamed once complete. Samples are labelled with
// label and carry byte progress against the content length, when known.
func (f *Fetcher) DownloadToPath(ctx context.Context, src, dest string, sink progress.Sink, label string) error {
	if !f.active.CompareAndSwap(false, true) {
		return media.Wrap(media.KindUnexpected, ErrDownloadActive, src)
	}
	defer f.active.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	part := dest + ".part"
	j := f.registry.Register(job.KindDownload, part, func() error {
		cancel()
		return nil
	})

	err := f.download(ctx, src, part, sink, label)
	if err == nil {
		if err = os.Rename(part, dest); err != nil {
			err = media.Wrap(media.KindUnexpected, err, "finishing download")
		}
	}
	if err != nil {
		if rmErr := os.Remove(part); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			f.logger.Warn("remove %s: %v", part, rmErr)
		}
		if j.Cancelled() || ctx.Err() != nil {
			err = media.Cancelled("download of " + src)
		}
	}
	f.registry.Deregister(j)

	if err != nil {
		f.logger.Info("download of %s failed: %v", src, err)
	}
	return err
}

func (f *Fetcher) download(ctx context.Context, src, part string, sink progress.Sink, label string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return media.Wrap(media.KindUnexpected, err, "building request")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return media.Wrap(media.KindUnexpected, err, "requesting "+src)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return media.NewError(media.KindUnexpected, fmt.Sprintf("downloading %s: HTTP %d", src, resp.StatusCode))
	}

	if err := os.MkdirAll(filepath.Dir(part), 0o755); err != nil {
		return media.Wrap(media.KindUnexpected, err, "creating destination directory")
	}
	file, err := os.Create(part)
	if err != nil {
		return media.Wrap(media.KindUnexpected, err, "creating destination")
	}

	tracker := progress.NewTracker(sink, float64(resp.ContentLength), label)
	counter := &countingWriter{onWrite: tracker.Update}

	if _, err := io.Copy(io.MultiWriter(file, counter), resp.Body); err != nil {
		file.Close()
		return media.Wrap(media.KindUnexpected, err, "downloading "+src)
	}
	if err := file.Close(); err != nil {
		return media.Wrap(media.KindUnexpected, err, "writing destination")
	}

	tracker.Done()
	return nil
}

type countingWriter struct {
	n       int64
	onWrite func(float64)
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	w.onWrite(float64(w.n))
	return len(p), nil
}
