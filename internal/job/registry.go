// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MatchCut - 比赛录像剪辑与转码工具

package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ZSC714725/matchcut/internal/logger"
	"github.com/ZSC714725/matchcut/internal/process"

	"github.com/lithammer/shortuuid/v4"
)

// DefaultGrace is how long CancelAll waits for killed processes to exit
const DefaultGrace = time.Second

const pollInterval = 20 * time.Millisecond

// Registry tracks every in-flight job. CancelAll is the single
// cancellation entry point.
type Registry struct {
	grace  time.Duration
	logger logger.Logger
	exists func(pid int32) bool

	jobs []*Job
	ops  map[string]context.CancelFunc
	mu   sync.Mutex
}

// NewRegistry creates a Registry. A zero grace uses DefaultGrace.
func NewRegistry(grace time.Duration, log logger.Logger) *Registry {
	if grace <= 0 {
		grace = DefaultGrace
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Registry{
		grace:  grace,
		logger: log,
		exists: process.Exists,
		ops:    make(map[string]context.CancelFunc),
	}
}

// Begin derives an operation context that CancelAll cancels, so steps of
// a multi-job operation that have not started yet fail fast. Call end
// when the operation returns.
func (r *Registry) Begin(parent context.Context) (ctx context.Context, end func()) {
	ctx, cancel := context.WithCancel(parent)
	id := shortuuid.New()

	r.mu.Lock()
	r.ops[id] = cancel
	r.mu.Unlock()

	return ctx, func() {
		r.mu.Lock()
		delete(r.ops, id)
		r.mu.Unlock()
		cancel()
	}
}

// Register adds a job. kill must stop the job's work; it may be called
// before the work has started.
func (r *Registry) Register(kind Kind, outputPath string, kill func() error) *Job {
	j := &Job{
		ID:         shortuuid.New(),
		Kind:       kind,
		OutputPath: outputPath,
		StartedAt:  time.Now(),
		kill:       kill,
		done:       make(chan struct{}),
	}

	r.mu.Lock()
	r.jobs = append(r.jobs, j)
	r.mu.Unlock()

	r.logger.Debug("job %s registered: %s -> %s", j.ID, kind, outputPath)
	return j
}

// Deregister removes j. Removing an unknown job only marks it done.
func (r *Registry) Deregister(j *Job) {
	r.mu.Lock()
	for i, x := range r.jobs {
		if x == j {
			r.jobs = append(r.jobs[:i], r.jobs[i+1:]...)
			break
		}
	}
	r.mu.Unlock()
	j.finish()
}

// Len returns the number of registered jobs
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// List returns a snapshot of all registered jobs
func (r *Registry) List() []Info {
	r.mu.Lock()
	jobs := append([]*Job(nil), r.jobs...)
	r.mu.Unlock()

	out := make([]Info, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.info())
	}
	return out
}

// CancelAll kills every registered job, waits up to the grace period for
// them to exit, removes their output files and drops them from the
// registry. Calling it with nothing registered is a no-op.
func (r *Registry) CancelAll(ctx context.Context) error {
	r.mu.Lock()
	jobs := append([]*Job(nil), r.jobs...)
	ops := make([]context.CancelFunc, 0, len(r.ops))
	for _, cancel := range r.ops {
		ops = append(ops, cancel)
	}
	r.mu.Unlock()

	for _, cancel := range ops {
		cancel()
	}

	if len(jobs) == 0 {
		return nil
	}

	r.logger.Info("cancelling %d job(s)", len(jobs))

	var errs []error
	for _, j := range jobs {
		j.cancelled.Store(true)
		if j.kill == nil {
			continue
		}
		if err := j.kill(); err != nil {
			r.logger.Error("job %s: kill: %v", j.ID, err)
			errs = append(errs, fmt.Errorf("kill job %s: %w", j.ID, err))
		}
	}

	deadline := time.Now().Add(r.grace)
	for _, j := range jobs {
		if !r.waitExit(ctx, j, deadline) {
			r.logger.Warn("job %s (pid %d) still alive after %s", j.ID, j.PID(), r.grace)
		}
	}

	for _, j := range jobs {
		if j.OutputPath == "" {
			continue
		}
		if err := os.Remove(j.OutputPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			r.logger.Error("job %s: remove %s: %v", j.ID, j.OutputPath, err)
			errs = append(errs, fmt.Errorf("remove %s: %w", j.OutputPath, err))
		}
	}

	r.mu.Lock()
	kept := r.jobs[:0]
	for _, x := range r.jobs {
		if !containsJob(jobs, x) {
			kept = append(kept, x)
		}
	}
	r.jobs = kept
	r.mu.Unlock()

	return errors.Join(errs...)
}

// waitExit returns true once j is deregistered or its process is gone
func (r *Registry) waitExit(ctx context.Context, j *Job, deadline time.Time) bool {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-j.Done():
			return true
		default:
		}
		if pid := j.PID(); pid > 0 && !r.exists(pid) {
			return true
		}
		if !time.Now().Before(deadline) {
			return false
		}

		select {
		case <-j.Done():
			return true
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

func containsJob(jobs []*Job, j *Job) bool {
	for _, x := range jobs {
		if x == j {
			return true
		}
	}
	return false
}
