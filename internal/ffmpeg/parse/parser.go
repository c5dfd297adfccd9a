// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MatchCut - 比赛录像剪辑与转码工具

package parse

import (
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/ZSC714725/matchcut/internal/process"
	"github.com/ZSC714725/matchcut/internal/progress"
)

// Progress is the latest stats line of a trim/concat run
type Progress struct {
	Frame uint64  `json:"frame"`
	Size  uint64  `json:"size_bytes"`
	Time  float64 `json:"time_seconds"`
	Speed float64 `json:"speed"`
}

// Parser reads ffmpeg stderr. Besides the stats it keeps the last lines
// so a failed run can be explained.
type Parser interface {
	process.Parser
	Progress() Progress
	// Tail returns the last n lines joined by newlines
	Tail(n int) string
}

var (
	frameRe  = regexp.MustCompile(`frame=\s*([0-9]+)`)
	sizeRe   = regexp.MustCompile(`size=\s*([0-9]+)(kB|KiB)`)
	timeRe   = regexp.MustCompile(`time=\s*(\S+)`)
	timeUsRe = regexp.MustCompile(`out_time_us=\s*([0-9]+)`) // -progress 输出
	speedRe  = regexp.MustCompile(`speed=\s*([0-9\.]+)x`)
)

type parser struct {
	lock     sync.Mutex
	lines    []string
	keep     int
	progress Progress

	onProgress func(Progress)
}

// Config for the parser
type Config struct {
	// LogLines kept for Tail, default 100
	LogLines int
	// OnProgress is called for every stats line, from the reader goroutine
	OnProgress func(Progress)
}

// New creates a Parser
func New(config Config) Parser {
	keep := config.LogLines
	if keep <= 0 {
		keep = 100
	}
	return &parser{keep: keep, onProgress: config.OnProgress}
}

func (p *parser) Parse(line string) bool {
	p.lock.Lock()
	p.remember(line)
	if !strings.Contains(line, "time=") && !strings.Contains(line, "out_time_us=") {
		p.lock.Unlock()
		return false
	}

	if x, ok := matchUint(frameRe, line); ok {
		p.progress.Frame = x
	}
	if x, ok := matchUint(sizeRe, line); ok {
		p.progress.Size = x * 1024
	}
	if m := timeRe.FindStringSubmatch(line); m != nil {
		// 首行 time=N/A 解析为 0，时间只增不减
		if t := progress.ParseTimemark(m[1]); t > p.progress.Time {
			p.progress.Time = t
		}
	}
	if us, ok := matchUint(timeUsRe, line); ok {
		p.progress.Time = float64(us) / 1e6
	}
	if m := speedRe.FindStringSubmatch(line); m != nil {
		if x, err := strconv.ParseFloat(m[1], 64); err == nil {
			p.progress.Speed = x
		}
	}
	snapshot := p.progress
	p.lock.Unlock()

	if p.onProgress != nil {
		p.onProgress(snapshot)
	}
	return true
}

// remember appends line, dropping the oldest beyond keep. Caller holds lock.
func (p *parser) remember(line string) {
	if len(p.lines) == p.keep {
		copy(p.lines, p.lines[1:])
		p.lines = p.lines[:p.keep-1]
	}
	p.lines = append(p.lines, line)
}

func (p *parser) Tail(n int) string {
	p.lock.Lock()
	defer p.lock.Unlock()
	lines := p.lines
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

func (p *parser) Progress() Progress {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.progress
}

func matchUint(re *regexp.Regexp, line string) (uint64, bool) {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	x, err := strconv.ParseUint(m[1], 10, 64)
	return x, err == nil
}
