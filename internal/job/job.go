// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MatchCut - 比赛录像剪辑与转码工具

package job

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZSC714725/matchcut/internal/ffmpeg/parse"
	"github.com/ZSC714725/matchcut/internal/process"
)

// Kind of work a job performs
type Kind string

const (
	KindTrim     Kind = "trim"
	KindConcat   Kind = "concat"
	KindDownload Kind = "download"
	KindCopy     Kind = "copy"
	KindProbe    Kind = "probe"
)

// Job is one in-flight process or transfer
type Job struct {
	ID         string
	Kind       Kind
	OutputPath string
	StartedAt  time.Time

	kill      func() error
	cancelled atomic.Bool

	proc struct {
		p     process.Process
		stats Stats
		lock  sync.Mutex
	}

	done     chan struct{}
	doneOnce sync.Once
}

// Stats reports the latest ffmpeg progress of a job
type Stats interface {
	Progress() parse.Progress
}

// Attach records the process behind the job so its PID, state and
// resource usage can be observed. stats may be nil.
func (j *Job) Attach(p process.Process, stats Stats) {
	j.proc.lock.Lock()
	j.proc.p = p
	j.proc.stats = stats
	j.proc.lock.Unlock()
}

// PID of the attached process, 0 if none
func (j *Job) PID() int32 {
	p := j.process()
	if p == nil {
		return 0
	}
	return p.PID()
}

func (j *Job) process() process.Process {
	p, _ := j.attached()
	return p
}

func (j *Job) attached() (process.Process, Stats) {
	j.proc.lock.Lock()
	defer j.proc.lock.Unlock()
	return j.proc.p, j.proc.stats
}

// Cancelled reports whether CancelAll reached this job
func (j *Job) Cancelled() bool {
	return j.cancelled.Load()
}

// Done is closed once the job is deregistered
func (j *Job) Done() <-chan struct{} {
	return j.done
}

func (j *Job) finish() {
	j.doneOnce.Do(func() { close(j.done) })
}

// Info is a snapshot of a job
type Info struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	OutputPath string    `json:"output_path"`
	PID        int32     `json:"pid,omitempty"`
	State      string    `json:"state,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	CPU        float64   `json:"cpu_usage"`
	Memory     uint64    `json:"memory_bytes"`
	// Progress is the last ffmpeg stats line: frame, size, time, speed
	Progress *parse.Progress `json:"progress,omitempty"`
}

func (j *Job) info() Info {
	i := Info{
		ID:         j.ID,
		Kind:       j.Kind,
		OutputPath: j.OutputPath,
		StartedAt:  j.StartedAt,
	}
	p, stats := j.attached()
	if p != nil {
		st := p.Status()
		i.PID = p.PID()
		i.State = st.State
		i.CPU = st.CPU
		i.Memory = st.Memory
	}
	if stats != nil {
		pr := stats.Progress()
		i.Progress = &pr
	}
	return i
}
