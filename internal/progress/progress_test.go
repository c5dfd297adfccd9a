package progress

import (
	"encoding/json"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimate(t *testing.T) {
	start := time.Unix(1000, 0)

	s, ok := estimateAt(25, 100, start, start.Add(10*time.Second))
	require.True(t, ok)
	assert.Equal(t, 25, s.PercentageDone)
	assert.Equal(t, 30.0, s.RemainingSeconds)

	s, ok = estimateAt(150, 100, start, start.Add(time.Second))
	require.True(t, ok)
	assert.Equal(t, 100, s.PercentageDone)
	assert.Equal(t, 0.0, s.RemainingSeconds)

	s, ok = estimateAt(0.2, 100, start, start.Add(time.Second))
	require.True(t, ok)
	assert.Equal(t, 0, s.PercentageDone)
	assert.True(t, s.Indeterminate())
}

func TestEstimate_ZeroTotal(t *testing.T) {
	_, ok := Estimate(10, 0, time.Now())
	assert.False(t, ok)

	_, ok = Estimate(10, -5, time.Now())
	assert.False(t, ok)
}

func TestSample_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(Sample{PercentageDone: 0, RemainingSeconds: math.Inf(1)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"percentage_done":0,"remaining_seconds":null}`, string(b))

	b, err = json.Marshal(Sample{PercentageDone: 40, RemainingSeconds: 12, Label: "first half"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"percentage_done":40,"remaining_seconds":12,"label":"first half"}`, string(b))
}

func TestParseTimemark(t *testing.T) {
	tests := map[string]float64{
		"00:02:15.50":  135.5,
		"01:00:00.00":  3600,
		"00:00:07.123": 7.123,
		"00:00:42":     42,
		"garbage":      0,
		"":             0,
		"aa:01:02.5":   62.5,
		"N/A":          0,
		// more digits than fit in a uint64
		"00:00:01.50000000000000000000001": 1.5,
		"00:00:01.5e3":                     1,
		"00:00:01.-5":                      1,
	}
	for in, want := range tests {
		assert.InDelta(t, want, ParseTimemark(in), 1e-9, in)
	}
}

func TestTracker_Monotonic(t *testing.T) {
	var got []Sample
	tr := NewTracker(func(s Sample) { got = append(got, s) }, 100, "cut")

	for _, v := range []float64{10, 30, 20, 60, 100, 120} {
		tr.Update(v)
	}
	tr.Done()
	tr.Update(50)

	require.NotEmpty(t, got)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i].PercentageDone, got[i-1].PercentageDone)
	}
	last := got[len(got)-1]
	assert.Equal(t, 100, last.PercentageDone)
	assert.Equal(t, "cut", last.Label)

	hundreds := 0
	for _, s := range got {
		if s.PercentageDone == 100 {
			hundreds++
		}
	}
	assert.Equal(t, 1, hundreds)
}

func TestTracker_UnknownTotal(t *testing.T) {
	var got []Sample
	tr := NewTracker(func(s Sample) { got = append(got, s) }, 0, "")
	tr.Update(10)
	assert.Empty(t, got)

	tr.Done()
	require.Len(t, got, 1)
	assert.Equal(t, 100, got[0].PercentageDone)
}

func TestWeighted(t *testing.T) {
	var mu sync.Mutex
	var got []Sample
	w := NewWeighted(func(s Sample) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	}, 40, 2, "")

	w.Part(0, 10)(5)
	w.Complete(0, 10)
	w.Part(1, 30)(45)
	w.Done()

	require.Len(t, got, 4)
	assert.Equal(t, 13, got[0].PercentageDone)
	assert.Equal(t, 25, got[1].PercentageDone)
	assert.Equal(t, 99, got[2].PercentageDone)
	assert.Equal(t, 100, got[3].PercentageDone)
}

func TestSlowest(t *testing.T) {
	_, ok := Slowest(nil)
	assert.False(t, ok)

	s, ok := Slowest([]Sample{{PercentageDone: 80}, {PercentageDone: 20, Label: "clip-002"}, {PercentageDone: 50}})
	require.True(t, ok)
	assert.Equal(t, "clip-002", s.Label)
}
