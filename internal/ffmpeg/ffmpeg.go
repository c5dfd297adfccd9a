// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MatchCut - 比赛录像剪辑与转码工具

package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ZSC714725/matchcut/internal/ffmpeg/parse"
	"github.com/ZSC714725/matchcut/internal/ffmpeg/skills"
	"github.com/ZSC714725/matchcut/internal/logger"
	"github.com/ZSC714725/matchcut/internal/process"
)

// FFmpeg manages the FFmpeg and FFprobe binaries
type FFmpeg interface {
	New(config ProcessConfig) (process.Process, error)
	NewParser(onProgress func(parse.Progress)) parse.Parser
	ProbeDuration(ctx context.Context, path string) (float64, error)
	ValidateInput(address string) bool
	ValidateOutput(address string) bool
	Skills() (skills.Skills, error)
	ReloadSkills() error
}

// ProcessConfig for creating a process
type ProcessConfig struct {
	StaleTimeout time.Duration
	Command      []string
	Parser       process.Parser
	Logger       logger.Logger
	OnExit       func(state string)
}

// Config for FFmpeg
type Config struct {
	Binary          string
	ProbeBinary     string
	MaxLogLines     int
	ValidatorInput  Validator
	ValidatorOutput Validator
}

type ffmpeg struct {
	binary       string
	probeBinary  string
	validatorIn  Validator
	validatorOut Validator
	skills       *skills.Skills
	logLines     int
	skillsLock   sync.Mutex
}

// New creates FFmpeg. Skills are probed lazily on first use.
func New(config Config) (FFmpeg, error) {
	binary, err := exec.LookPath(config.Binary)
	if err != nil {
		return nil, fmt.Errorf("invalid ffmpeg binary: %w", err)
	}

	probe := config.ProbeBinary
	if probe == "" {
		probe = "ffprobe"
	}
	probeBinary, err := exec.LookPath(probe)
	if err != nil {
		return nil, fmt.Errorf("invalid ffprobe binary: %w", err)
	}

	f := &ffmpeg{
		binary:      binary,
		probeBinary: probeBinary,
		logLines:    config.MaxLogLines,
	}

	if f.logLines <= 0 {
		f.logLines = 100
	}

	if config.ValidatorInput != nil {
		f.validatorIn = config.ValidatorInput
	} else {
		f.validatorIn, _ = NewValidator(nil, DefaultBlock)
	}
	if config.ValidatorOutput != nil {
		f.validatorOut = config.ValidatorOutput
	} else {
		f.validatorOut, _ = NewValidator(nil, DefaultBlock)
	}

	return f, nil
}

func (f *ffmpeg) New(config ProcessConfig) (process.Process, error) {
	return process.New(process.Config{
		Binary:       f.binary,
		Args:         config.Command,
		StaleTimeout: config.StaleTimeout,
		Parser:       config.Parser,
		Logger:       wrapLogger(config.Logger),
		OnExit:       config.OnExit,
	})
}

func (f *ffmpeg) NewParser(onProgress func(parse.Progress)) parse.Parser {
	return parse.New(parse.Config{LogLines: f.logLines, OnProgress: onProgress})
}

// ProbeDuration returns the container duration of path in seconds
func (f *ffmpeg) ProbeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, f.probeBinary,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=nokey=1:noprint_wrappers=1",
		path,
	)
	cmd.Env = []string{}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}

	value := strings.TrimSpace(string(out))
	if value == "" || value == "N/A" {
		return 0, fmt.Errorf("ffprobe %s: duration missing", path)
	}
	d, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return d, nil
}

func (f *ffmpeg) ValidateInput(address string) bool {
	return f.validatorIn.IsValid(address)
}

func (f *ffmpeg) ValidateOutput(address string) bool {
	return f.validatorOut.IsValid(address)
}

func (f *ffmpeg) Skills() (skills.Skills, error) {
	f.skillsLock.Lock()
	defer f.skillsLock.Unlock()

	if f.skills == nil {
		s, err := skills.New(f.binary)
		if err != nil {
			return skills.Skills{}, err
		}
		f.skills = &s
	}
	return *f.skills, nil
}

func (f *ffmpeg) ReloadSkills() error {
	s, err := skills.New(f.binary)
	if err != nil {
		return fmt.Errorf("reload skills: %w", err)
	}
	f.skillsLock.Lock()
	f.skills = &s
	f.skillsLock.Unlock()
	return nil
}

func wrapLogger(l logger.Logger) *loggerWrapper {
	return &loggerWrapper{logger: l, prefix: "ffmpeg: "}
}

type loggerWrapper struct {
	logger logger.Logger
	prefix string
}

func (w *loggerWrapper) Info(format string, args ...interface{}) {
	if w.logger != nil {
		w.logger.Info(w.prefix+format, args...)
	}
}

func (w *loggerWrapper) Error(format string, args ...interface{}) {
	if w.logger != nil {
		w.logger.Error(w.prefix+format, args...)
	}
}

func (w *loggerWrapper) Debug(format string, args ...interface{}) {
	if w.logger != nil {
		w.logger.Debug(w.prefix+format, args...)
	}
}
