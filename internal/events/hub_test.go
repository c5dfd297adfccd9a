package events

import (
	"testing"
	"time"

	"github.com/ZSC714725/matchcut/internal/progress"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishSubscribe(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	a := h.Subscribe(4)
	b := h.Subscribe(4)

	h.Sink("clips")("clip-001.mp4", progress.Sample{PercentageDone: 40, RemainingSeconds: 3})

	for _, ch := range []<-chan Event{a, b} {
		select {
		case e := <-ch:
			assert.Equal(t, "clips", e.Operation)
			assert.Equal(t, "clip-001.mp4", e.Target)
			assert.Equal(t, 40, e.Sample.PercentageDone)
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for event")
		}
	}
}

func TestHub_DropsWhenFull(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	ch := h.Subscribe(1)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			h.Publish(Event{Operation: "import", Sample: progress.Sample{PercentageDone: i}})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	e := <-ch
	assert.Equal(t, 0, e.Sample.PercentageDone)
}

func TestHub_UnsubscribeAndClose(t *testing.T) {
	h := NewHub(nil)

	ch := h.Subscribe(1)
	h.Unsubscribe(ch)
	_, ok := <-ch
	assert.False(t, ok)

	other := h.Subscribe(1)
	h.Close()
	_, ok = <-other
	assert.False(t, ok)

	// after close
	h.Publish(Event{})
	late := h.Subscribe(1)
	_, ok = <-late
	require.False(t, ok)
	h.Close()
}
