// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MatchCut - 比赛录像剪辑与转码工具

package process

import (
	"sync"

	gopsutilprocess "github.com/shirou/gopsutil/v3/process"
)

// Sampler reports CPU and memory usage of a running process
type Sampler interface {
	Start(pid int) error
	Stop()
	Current() (cpu float64, memory uint64)
}

// sysSampler 使用 gopsutil 采集进程 CPU 和内存
type sysSampler struct {
	mu   sync.RWMutex
	pid  int32
	proc *gopsutilprocess.Process
}

// NewSysSampler creates a gopsutil backed Sampler
func NewSysSampler() Sampler {
	return &sysSampler{}
}

func (l *sysSampler) Start(pid int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	proc, err := gopsutilprocess.NewProcess(int32(pid))
	if err != nil {
		return err
	}
	l.pid = int32(pid)
	l.proc = proc
	return nil
}

func (l *sysSampler) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pid = 0
	l.proc = nil
}

func (l *sysSampler) Current() (cpu float64, memory uint64) {
	l.mu.RLock()
	proc := l.proc
	l.mu.RUnlock()
	if proc == nil {
		return 0, 0
	}
	if cpuPct, err := proc.CPUPercent(); err == nil {
		cpu = cpuPct
	}
	if memInfo, err := proc.MemoryInfo(); err == nil && memInfo != nil {
		memory = memInfo.RSS
	}
	return cpu, memory
}

// Exists reports whether a process with pid is still alive. Zombies
// waiting to be reaped count as gone.
func Exists(pid int32) bool {
	if pid <= 0 {
		return false
	}
	ok, err := gopsutilprocess.PidExists(pid)
	if err != nil || !ok {
		return false
	}
	proc, err := gopsutilprocess.NewProcess(pid)
	if err != nil {
		return false
	}
	status, err := proc.Status()
	if err != nil {
		return true
	}
	for _, s := range status {
		if s == gopsutilprocess.Zombie {
			return false
		}
	}
	return true
}
