package server

import (
	"sync"
	"time"
)

// ReloadEvent describes one reload of the templates directory.
type ReloadEvent struct {
	At        time.Time `json:"at"`
	Templates int       `json:"templates"`
	Added     []string  `json:"added,omitempty"`
	Removed   []string  `json:"removed,omitempty"`
	Affected  []string  `json:"affected,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Notifier broadcasts reload events to all subscribed listeners.
// Each listener holds at most one pending event; a slow listener misses
// intermediate reloads but always sees a later one.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[chan ReloadEvent]struct{}
}

// NewNotifier creates a new Notifier instance.
func NewNotifier() *Notifier {
	return &Notifier{
		listeners: make(map[chan ReloadEvent]struct{}),
	}
}

// Subscribe returns a channel that receives reload events.
// The caller must call Unsubscribe when done.
func (n *Notifier) Subscribe() chan ReloadEvent {
	ch := make(chan ReloadEvent, 1)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel and closes it.
func (n *Notifier) Unsubscribe(ch chan ReloadEvent) {
	n.mu.Lock()
	delete(n.listeners, ch)
	n.mu.Unlock()
	close(ch)
}

// Broadcast sends ev to all listeners without blocking. A pending event
// that was not yet received is replaced.
func (n *Notifier) Broadcast(ev ReloadEvent) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.listeners {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
		}
	}
}

// Len returns the number of subscribed listeners.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}
