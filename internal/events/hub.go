// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MatchCut - 比赛录像剪辑与转码工具
//
// Package events fans progress samples out to subscribers such as the
// SSE endpoint.

package events

import (
	"sync"

	"github.com/ZSC714725/matchcut/internal/logger"
	"github.com/ZSC714725/matchcut/internal/progress"
)

// Event is one progress sample of an operation. Target names the file or
// clip the sample belongs to.
type Event struct {
	Operation string          `json:"operation"`
	Target    string          `json:"target"`
	Sample    progress.Sample `json:"sample"`
}

// Hub delivers events to every subscriber without blocking the
// publisher. A subscriber whose buffer is full misses the event.
type Hub struct {
	mu     sync.RWMutex
	subs   []chan Event
	closed bool
	logger logger.Logger
}

// NewHub creates a Hub
func NewHub(log logger.Logger) *Hub {
	if log == nil {
		log = logger.Discard()
	}
	return &Hub{logger: log}
}

// Publish sends e to all subscribers
func (h *Hub) Publish(e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}
	for _, ch := range h.subs {
		select {
		case ch <- e:
		default:
			h.logger.Debug("subscriber full, dropping %s sample for %s", e.Operation, e.Target)
		}
	}
}

// Sink returns a progress callback publishing under operation
func (h *Hub) Sink(operation string) func(target string, s progress.Sample) {
	return func(target string, s progress.Sample) {
		h.Publish(Event{Operation: operation, Target: target, Sample: s})
	}
}

// Subscribe returns a channel receiving all future events
func (h *Hub) Subscribe(bufferSize int) <-chan Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, bufferSize)
	if h.closed {
		close(ch)
		return ch
	}
	h.subs = append(h.subs, ch)
	return ch
}

// Unsubscribe removes and closes ch
func (h *Hub) Unsubscribe(ch <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, sub := range h.subs {
		if sub == ch {
			h.subs = append(h.subs[:i], h.subs[i+1:]...)
			close(sub)
			return
		}
	}
}

// Close closes every subscriber channel. Later publishes are dropped.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for _, ch := range h.subs {
		close(ch)
	}
	h.subs = nil
}
