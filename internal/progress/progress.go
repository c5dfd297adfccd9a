// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MatchCut - 比赛录像剪辑与转码工具
//
// Package progress turns elapsed stream time or transferred bytes into a
// percentage and a remaining-time estimate.

package progress

import (
	"encoding/json"
	"math"
	"sync"
	"time"
)

// Sample is one progress reading. RemainingSeconds is +Inf while no
// estimate is possible.
type Sample struct {
	PercentageDone   int     `json:"percentage_done"`
	RemainingSeconds float64 `json:"remaining_seconds"`
	Label            string  `json:"label,omitempty"`
}

// Indeterminate reports whether the remaining time is unknown
func (s Sample) Indeterminate() bool {
	return math.IsInf(s.RemainingSeconds, 1)
}

// MarshalJSON encodes an unknown remaining time as null
func (s Sample) MarshalJSON() ([]byte, error) {
	out := struct {
		PercentageDone   int      `json:"percentage_done"`
		RemainingSeconds *float64 `json:"remaining_seconds"`
		Label            string   `json:"label,omitempty"`
	}{PercentageDone: s.PercentageDone, Label: s.Label}
	if !s.Indeterminate() {
		r := s.RemainingSeconds
		out.RemainingSeconds = &r
	}
	return json.Marshal(out)
}

// Sink receives samples. Implementations must not block.
type Sink func(Sample)

// Estimate computes a sample from elapsed and total units. It returns
// false when total is not positive.
func Estimate(elapsed, total float64, start time.Time) (Sample, bool) {
	return estimateAt(elapsed, total, start, time.Now())
}

func estimateAt(elapsed, total float64, start, now time.Time) (Sample, bool) {
	if total <= 0 || math.IsNaN(total) || math.IsNaN(elapsed) {
		return Sample{}, false
	}
	if elapsed < 0 {
		elapsed = 0
	}

	pct := int(math.Round(math.Min(elapsed/total*100, 100)))
	s := Sample{PercentageDone: pct, RemainingSeconds: math.Inf(1)}
	if pct > 0 {
		wallMs := float64(now.Sub(start).Milliseconds())
		s.RemainingSeconds = math.Round(wallMs / float64(pct) * float64(100-pct) / 1000)
	}
	return s, true
}

// Tracker emits samples for one logical operation. Percentages never go
// backwards and Done always emits 100.
type Tracker struct {
	sink  Sink
	total float64
	label string
	start time.Time
	last  int
	done  bool
	mu    sync.Mutex
}

// NewTracker creates a Tracker. A nil sink discards samples.
func NewTracker(sink Sink, total float64, label string) *Tracker {
	return &Tracker{sink: sink, total: total, label: label, start: time.Now(), last: -1}
}

// Update reports elapsed units
func (t *Tracker) Update(elapsed float64) {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return
	}
	s, ok := Estimate(elapsed, t.total, t.start)
	if !ok || s.PercentageDone < t.last {
		t.mu.Unlock()
		return
	}
	// 100 is reserved for Done
	if s.PercentageDone >= 100 {
		s.PercentageDone = 99
		if s.RemainingSeconds > 0 && !s.Indeterminate() {
			s.RemainingSeconds = 0
		}
	}
	t.last = s.PercentageDone
	s.Label = t.label
	t.mu.Unlock()

	t.emit(s)
}

// Done emits the final 100% sample. Later updates are ignored.
func (t *Tracker) Done() {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return
	}
	t.done = true
	t.last = 100
	t.mu.Unlock()

	t.emit(Sample{PercentageDone: 100, RemainingSeconds: 0, Label: t.label})
}

func (t *Tracker) emit(s Sample) {
	if t.sink != nil {
		t.sink(s)
	}
}

// Weighted sums progress of several sub-operations into one total. Each
// part reports its own elapsed units; the tracker sees the sum.
type Weighted struct {
	tracker *Tracker
	parts   []float64
	mu      sync.Mutex
}

// NewWeighted creates a Weighted over parts sub-operations that together
// cover total units
func NewWeighted(sink Sink, total float64, parts int, label string) *Weighted {
	return &Weighted{
		tracker: NewTracker(sink, total, label),
		parts:   make([]float64, parts),
	}
}

// Part returns the progress callback for sub-operation i. max caps the
// units that part can contribute.
func (w *Weighted) Part(i int, max float64) func(float64) {
	return func(elapsed float64) {
		if elapsed > max {
			elapsed = max
		}
		w.mu.Lock()
		w.parts[i] = elapsed
		sum := 0.0
		for _, v := range w.parts {
			sum += v
		}
		w.mu.Unlock()
		w.tracker.Update(sum)
	}
}

// Complete marks sub-operation i as fully done
func (w *Weighted) Complete(i int, max float64) {
	w.Part(i, max)(max)
}

// Done emits the final sample
func (w *Weighted) Done() {
	w.tracker.Done()
}

// Slowest returns the sample with the lowest percentage, for callers that
// collapse several channels into one
func Slowest(samples []Sample) (Sample, bool) {
	if len(samples) == 0 {
		return Sample{}, false
	}
	min := samples[0]
	for _, s := range samples[1:] {
		if s.PercentageDone < min.PercentageDone {
			min = s
		}
	}
	return min, true
}
