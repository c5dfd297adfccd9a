// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MatchCut - 比赛录像剪辑与转码工具
//
// Package process wraps exec.Cmd for one run of an FFmpeg process.

package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
	"unicode/utf8"
)

var (
	ErrNotStarted = errors.New("process not started")
	ErrKilled     = errors.New("process killed")
	ErrStalled    = errors.New("process stalled")
)

// ExitError is returned by Wait when the process exits non-zero
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// Process represents a process
type Process interface {
	Start() error
	Kill() error
	Wait() error
	PID() int32
	Status() Status
	IsRunning() bool
}

// Config for a process
type Config struct {
	Binary       string
	Args         []string
	Dir          string
	StaleTimeout time.Duration
	Parser       Parser
	// OnExit receives the final state once Wait would return
	OnExit func(state string)
	Logger Logger
}

// Status of a process
type Status struct {
	State    string
	Duration time.Duration
	Time     time.Time
	CPU      float64
	Memory   uint64
}

// Logger interface
type Logger interface {
	Info(format string, args ...interface{})
	Error(format string, args ...interface{})
	Debug(format string, args ...interface{})
}

type stateType string

const (
	stateFinished  stateType = "finished"
	stateStarting  stateType = "starting"
	stateRunning   stateType = "running"
	stateFinishing stateType = "finishing"
	stateFailed    stateType = "failed"
	stateKilled    stateType = "killed"
)

func (s stateType) String() string { return string(s) }

func (s stateType) IsRunning() bool {
	return s == stateStarting || s == stateRunning || s == stateFinishing
}

type process struct {
	binary string
	args   []string
	dir    string
	cmd    *exec.Cmd
	pid    int32
	stderr io.ReadCloser

	// guards Start against a concurrent Kill
	ctl           sync.Mutex
	started       bool
	killRequested bool

	state struct {
		state stateType
		time  time.Time
		lock  sync.Mutex
	}
	parser Parser
	stale  struct {
		last    time.Time
		timeout time.Duration
		stalled bool
		cancel  context.CancelFunc
		lock    sync.Mutex
	}
	logger    Logger
	sampler   Sampler
	onExit    func(state string)

	done    chan struct{}
	exitErr error
}

// New creates a new process
func New(config Config) (Process, error) {
	p := &process{
		binary:  config.Binary,
		args:    config.Args,
		dir:     config.Dir,
		parser:  config.Parser,
		logger:  config.Logger,
		sampler: NewSysSampler(),
		done:    make(chan struct{}),
	}

	if len(p.binary) == 0 {
		return nil, fmt.Errorf("no valid binary given")
	}

	if p.parser == nil {
		// 没有解析器时每行都视为进度
		p.parser = ParserFunc(func(string) bool { return true })
	}

	if p.logger == nil {
		p.logger = &nopLogger{}
	}

	p.initState(stateFinished)
	p.stale.timeout = config.StaleTimeout
	p.onExit = config.OnExit

	return p, nil
}

func (p *process) initState(state stateType) {
	p.state.lock.Lock()
	defer p.state.lock.Unlock()
	p.state.state = state
	p.state.time = time.Now()
}

// transitions lists the states reachable from each state. A process
// runs once, so failed and killed are final.
var transitions = map[stateType][]stateType{
	stateFinished:  {stateStarting},
	stateStarting:  {stateRunning, stateFailed},
	stateRunning:   {stateFinishing, stateFinished, stateFailed, stateKilled},
	stateFinishing: {stateFinishing, stateFinished, stateFailed, stateKilled},
}

func (p *process) setState(state stateType) error {
	p.state.lock.Lock()
	defer p.state.lock.Unlock()

	if p.state.state == stateFinishing && state == stateFinishing {
		return nil
	}
	for _, next := range transitions[p.state.state] {
		if next == state {
			p.state.state = state
			p.state.time = time.Now()
			return nil
		}
	}
	return fmt.Errorf("can't change from %s to %s", p.state.state, state)
}

func (p *process) getState() stateType {
	p.state.lock.Lock()
	defer p.state.lock.Unlock()
	return p.state.state
}

func (p *process) Status() Status {
	cpu, memory := p.sampler.Current()

	p.state.lock.Lock()
	stateTime := p.state.time
	stateString := p.state.state.String()
	p.state.lock.Unlock()

	return Status{
		State:    stateString,
		Duration: time.Since(stateTime),
		Time:     stateTime,
		CPU:      cpu,
		Memory:   memory,
	}
}

func (p *process) IsRunning() bool {
	return p.getState().IsRunning()
}

func (p *process) PID() int32 {
	p.ctl.Lock()
	defer p.ctl.Unlock()
	return p.pid
}

// Start launches the process. A process runs at most once.
func (p *process) Start() error {
	p.ctl.Lock()
	defer p.ctl.Unlock()

	if p.started {
		return fmt.Errorf("process already started")
	}
	p.started = true

	if err := p.setState(stateStarting); err != nil {
		return err
	}

	var err error
	p.cmd = exec.Command(p.binary, p.args...)
	p.cmd.Env = []string{}
	p.cmd.Dir = p.dir

	p.stderr, err = p.cmd.StderrPipe()
	if err != nil {
		p.fail(err)
		return err
	}

	if err := p.cmd.Start(); err != nil {
		p.fail(err)
		return err
	}

	p.pid = int32(p.cmd.Process.Pid)
	if err := p.sampler.Start(int(p.pid)); err != nil {
		p.logger.Debug("sampler for pid %d: %v", p.pid, err)
	}

	p.setState(stateRunning)

	go p.reader()

	if p.stale.timeout != 0 {
		p.stale.lock.Lock()
		ctx, cancel := context.WithCancel(context.Background())
		p.stale.cancel = cancel
		p.stale.lock.Unlock()
		go p.staler(ctx)
	}

	// Kill arrived while we were starting
	if p.killRequested {
		p.kill()
	}

	return nil
}

func (p *process) fail(err error) {
	p.parser.Parse(err.Error())
	p.setState(stateFailed)
	p.exitErr = err
	close(p.done)
}

// Kill sends SIGKILL. Killing a process that has not started yet makes
// Start kill it right away.
func (p *process) Kill() error {
	p.ctl.Lock()
	defer p.ctl.Unlock()

	p.killRequested = true
	if p.cmd == nil || p.cmd.Process == nil {
		return nil
	}
	return p.kill()
}

func (p *process) kill() error {
	if !p.IsRunning() {
		return nil
	}
	p.setState(stateFinishing)

	err := p.cmd.Process.Kill()
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.parser.Parse(err.Error())
		return err
	}
	return nil
}

// Wait blocks until the process exits
func (p *process) Wait() error {
	p.ctl.Lock()
	started := p.started
	p.ctl.Unlock()
	if !started {
		return ErrNotStarted
	}
	<-p.done
	return p.exitErr
}

func (p *process) staler(ctx context.Context) {
	p.stale.lock.Lock()
	p.stale.last = time.Now()
	p.stale.lock.Unlock()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			p.stale.lock.Lock()
			last := p.stale.last
			timeout := p.stale.timeout
			p.stale.lock.Unlock()

			if t.Sub(last) > timeout {
				p.logger.Error("pid %d: no progress for %s, killing", p.PID(), timeout)
				p.stale.lock.Lock()
				p.stale.stalled = true
				p.stale.lock.Unlock()
				p.Kill()
				return
			}
		}
	}
}

func (p *process) reader() {
	scanner := bufio.NewScanner(p.stderr)
	scanner.Split(scanLine)

	for scanner.Scan() {
		if p.parser.Parse(scanner.Text()) {
			p.stale.lock.Lock()
			p.stale.last = time.Now()
			p.stale.lock.Unlock()
		}
	}

	p.waiter()
}

func (p *process) waiter() {
	err := p.cmd.Wait()

	p.ctl.Lock()
	killed := p.killRequested
	p.ctl.Unlock()

	p.stale.lock.Lock()
	stalled := p.stale.stalled
	if p.stale.cancel != nil {
		p.stale.cancel()
		p.stale.cancel = nil
	}
	p.stale.lock.Unlock()

	switch {
	case stalled:
		p.setState(stateKilled)
		p.exitErr = ErrStalled
	case killed:
		p.setState(stateKilled)
		p.exitErr = ErrKilled
	case err == nil:
		p.setState(stateFinished)
	default:
		var exiterr *exec.ExitError
		if errors.As(err, &exiterr) {
			status, ok := exiterr.Sys().(syscall.WaitStatus)
			if ok && !status.Exited() {
				p.setState(stateKilled)
				p.exitErr = ErrKilled
			} else {
				p.setState(stateFailed)
				p.exitErr = &ExitError{Code: exiterr.ExitCode(), Err: err}
			}
		} else {
			p.setState(stateKilled)
			p.exitErr = err
		}
	}

	p.sampler.Stop()
	state := p.getState().String()
	close(p.done)

	if p.onExit != nil {
		go p.onExit(state)
	}
}

func scanLine(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	for start < len(data) {
		r, w := utf8.DecodeRune(data[start:])
		if r != '\n' && r != '\r' {
			break
		}
		start += w
	}

	for i := start; i < len(data); {
		r, w := utf8.DecodeRune(data[i:])
		if r == '\n' || r == '\r' {
			return i + w, data[start:i], nil
		}
		i += w
	}

	if atEOF && len(data) > start {
		return len(data), data[start:], nil
	}
	return start, nil, nil
}

type nopLogger struct{}

func (l *nopLogger) Info(format string, args ...interface{})  {}
func (l *nopLogger) Error(format string, args ...interface{}) {}
func (l *nopLogger) Debug(format string, args ...interface{}) {}
