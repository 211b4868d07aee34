package server

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_SubscribeUnsubscribe(t *testing.T) {
	n := NewNotifier()

	ch := n.Subscribe()
	require.NotNil(t, ch)
	assert.Equal(t, 1, n.Len())

	n.Unsubscribe(ch)
	assert.Equal(t, 0, n.Len())

	_, open := <-ch
	assert.False(t, open)
}

func TestNotifier_Broadcast(t *testing.T) {
	n := NewNotifier()
	ch1 := n.Subscribe()
	ch2 := n.Subscribe()
	defer n.Unsubscribe(ch1)
	defer n.Unsubscribe(ch2)

	n.Broadcast(ReloadEvent{Templates: 3})

	for _, ch := range []chan ReloadEvent{ch1, ch2} {
		select {
		case ev := <-ch:
			assert.Equal(t, 3, ev.Templates)
		case <-time.After(100 * time.Millisecond):
			t.Error("listener did not receive broadcast")
		}
	}
}

func TestNotifier_LatestEventWins(t *testing.T) {
	n := NewNotifier()
	ch := n.Subscribe()
	defer n.Unsubscribe(ch)

	n.Broadcast(ReloadEvent{Templates: 1})
	n.Broadcast(ReloadEvent{Templates: 2, Error: "boom"})

	ev := <-ch
	assert.Equal(t, 2, ev.Templates)
	assert.Equal(t, "boom", ev.Error)

	select {
	case <-ch:
		t.Error("stale event was kept")
	default:
	}
}

func TestNotifier_Concurrent(t *testing.T) {
	n := NewNotifier()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch := n.Subscribe()
			n.Broadcast(ReloadEvent{})
			n.Unsubscribe(ch)
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, n.Len())
}
