// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MatchCut - 比赛录像剪辑与转码工具
//
// Package transcode runs single stream-copy FFmpeg jobs: trim a range out
// of one file, or concatenate several files.

package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ZSC714725/matchcut/internal/ffmpeg"
	"github.com/ZSC714725/matchcut/internal/ffmpeg/parse"
	"github.com/ZSC714725/matchcut/internal/job"
	"github.com/ZSC714725/matchcut/internal/logger"
	"github.com/ZSC714725/matchcut/internal/media"
	"github.com/ZSC714725/matchcut/internal/process"
)

// tailLines of ffmpeg output are attached to unexpected failures
const tailLines = 20

// Input of a Run
type Input interface {
	kind() job.Kind
}

// Trim copies Range out of Source
type Trim struct {
	Source string
	Range  media.Range
}

func (Trim) kind() job.Kind { return job.KindTrim }

// Concat joins Sources in order. All sources must share one extension.
type Concat struct {
	Sources []string
}

func (Concat) kind() job.Kind { return job.KindConcat }

// Config for New
type Config struct {
	FFmpeg       ffmpeg.FFmpeg
	Registry     *job.Registry
	Logger       logger.Logger
	StaleTimeout time.Duration
	// TempDir receives concat lists
	TempDir string
}

// Executor runs FFmpeg jobs and registers each of them so CancelAll can
// reach it
type Executor struct {
	ffmpeg       ffmpeg.FFmpeg
	registry     *job.Registry
	logger       logger.Logger
	staleTimeout time.Duration
	tempDir      string
}

// New creates an Executor
func New(config Config) (*Executor, error) {
	if config.FFmpeg == nil {
		return nil, fmt.Errorf("no ffmpeg given")
	}
	if config.Registry == nil {
		return nil, fmt.Errorf("no job registry given")
	}

	e := &Executor{
		ffmpeg:       config.FFmpeg,
		registry:     config.Registry,
		logger:       config.Logger,
		staleTimeout: config.StaleTimeout,
		tempDir:      config.TempDir,
	}
	if e.logger == nil {
		e.logger = logger.Discard()
	}
	if e.tempDir == "" {
		e.tempDir = os.TempDir()
	}
	return e, nil
}

// Run executes input into outputPath. onProgress receives the media
// timestamp ffmpeg has reached, in seconds; it may be nil.
//
// On cancellation the partial output is removed and a Cancelled error is
// returned. Any other failure also removes the output and returns an
// Unexpected error carrying the tail of the ffmpeg log.
func (e *Executor) Run(ctx context.Context, input Input, outputPath string, onProgress func(seconds float64)) error {
	args, cleanup, err := e.prepare(input, outputPath)
	if err != nil {
		return err
	}
	defer cleanup()

	parser := e.ffmpeg.NewParser(func(p parse.Progress) {
		if onProgress != nil {
			onProgress(p.Time)
		}
	})

	var j *job.Job
	proc, err := e.ffmpeg.New(ffmpeg.ProcessConfig{
		StaleTimeout: e.staleTimeout,
		Command:      args,
		Parser:       parser,
		Logger:       e.logger,
		OnExit: func(state string) {
			e.logger.Debug("%s job %s exited: %s", input.kind(), j.ID, state)
		},
	})
	if err != nil {
		return media.Wrap(media.KindUnexpected, err, "creating ffmpeg process")
	}

	// registered before start so a cancel in between still reaches it
	j = e.registry.Register(input.kind(), outputPath, proc.Kill)
	j.Attach(proc, parser)

	var once sync.Once
	finish := func(removeOutput bool) {
		once.Do(func() {
			if removeOutput {
				e.remove(outputPath)
			}
			e.registry.Deregister(j)
		})
	}
	defer finish(false)

	if ctx.Err() != nil {
		finish(true)
		return media.Cancelled(fmt.Sprintf("%s of %s", input.kind(), outputPath))
	}

	if err := proc.Start(); err != nil {
		finish(true)
		return media.Wrap(media.KindUnexpected, err, "starting ffmpeg")
	}

	stop := context.AfterFunc(ctx, func() { proc.Kill() })
	defer stop()

	err = proc.Wait()

	if j.Cancelled() || ctx.Err() != nil {
		finish(true)
		e.logger.Info("%s of %s cancelled", input.kind(), outputPath)
		return media.Cancelled(fmt.Sprintf("%s of %s", input.kind(), outputPath))
	}

	if err == nil {
		finish(false)
		return nil
	}

	finish(true)

	tail := parser.Tail(tailLines)
	e.logger.Error("%s of %s failed: %v\n%s", input.kind(), outputPath, err, tail)

	if errors.Is(err, process.ErrStalled) {
		return media.Wrap(media.KindUnexpected, err, "ffmpeg stalled\n"+tail)
	}
	return media.Wrap(media.KindUnexpected, err, tail)
}

// prepare validates input and builds the ffmpeg arguments. No process is
// started when it fails.
func (e *Executor) prepare(input Input, outputPath string) ([]string, func(), error) {
	nop := func() {}

	if !e.ffmpeg.ValidateOutput(outputPath) {
		return nil, nop, media.NewError(media.KindUnexpected, fmt.Sprintf("output %q rejected", outputPath))
	}

	switch in := input.(type) {
	case Trim:
		if err := in.Range.Validate(); err != nil {
			return nil, nop, err
		}
		if !e.ffmpeg.ValidateInput(in.Source) {
			return nil, nop, media.NewError(media.KindUnexpected, fmt.Sprintf("input %q rejected", in.Source))
		}
		return ffmpeg.TrimArgs(in.Source, in.Range.Start, in.Range.Duration(), outputPath), nop, nil

	case Concat:
		if len(in.Sources) == 0 {
			return nil, nop, media.NoVideoSource("nothing to concatenate")
		}
		if bad, ok := media.SameExt(in.Sources); !ok {
			return nil, nop, media.FormatMismatch("%s does not match %s", bad, media.Ext(in.Sources[0]))
		}
		for _, src := range in.Sources {
			if !e.ffmpeg.ValidateInput(src) {
				return nil, nop, media.NewError(media.KindUnexpected, fmt.Sprintf("input %q rejected", src))
			}
		}

		list, err := ffmpeg.WriteConcatList(e.tempDir, in.Sources)
		if err != nil {
			return nil, nop, media.Wrap(media.KindUnexpected, err, "writing concat list")
		}
		return ffmpeg.ConcatArgs(list, outputPath), func() { e.remove(list) }, nil

	default:
		return nil, nop, media.NewError(media.KindUnexpected, fmt.Sprintf("unknown input %T", input))
	}
}

// Probe returns the duration of path in seconds. The probe is registered
// as a job, so CancelAll stops it too.
func (e *Executor) Probe(ctx context.Context, path string) (float64, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, media.NoVideoSource("%s: %v", path, err)
	}
	if !e.ffmpeg.ValidateInput(path) {
		return 0, media.NewError(media.KindUnexpected, fmt.Sprintf("input %q rejected", path))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	j := e.registry.Register(job.KindProbe, "", func() error {
		cancel()
		return nil
	})
	defer e.registry.Deregister(j)

	d, err := e.ffmpeg.ProbeDuration(ctx, path)
	if j.Cancelled() || ctx.Err() != nil {
		return 0, media.Cancelled("probe of " + path)
	}
	if err != nil {
		return 0, media.Wrap(media.KindUnexpected, err, "probing duration")
	}
	if d <= 0 {
		return 0, media.NewError(media.KindUnexpected, fmt.Sprintf("%s has no duration", path))
	}
	return d, nil
}

func (e *Executor) remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		e.logger.Warn("remove %s: %v", path, err)
	}
}
