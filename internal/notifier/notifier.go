// Package notifier fans out source-change events to SSE listeners.
package notifier

import "sync"

// Event announces a new diagram for the served source.
type Event struct {
	Fingerprint string `json:"fingerprint"`
}

// Notifier broadcasts events to all subscribed listeners. Each listener
// holds at most one pending event; a newer event replaces an unread one, so
// slow listeners see the latest fingerprint rather than a backlog.
type Notifier struct {
	mu        sync.Mutex
	listeners map[chan Event]struct{}
}

// New creates a new Notifier instance.
func New() *Notifier {
	return &Notifier{
		listeners: make(map[chan Event]struct{}),
	}
}

// Subscribe returns a channel that receives events.
// The caller must call Unsubscribe when done.
func (n *Notifier) Subscribe() chan Event {
	ch := make(chan Event, 1)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel and closes it. Unknown channels
// are ignored.
func (n *Notifier) Unsubscribe(ch chan Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.listeners[ch]; !ok {
		return
	}
	delete(n.listeners, ch)
	close(ch)
}

// Broadcast delivers ev to every listener without blocking.
func (n *Notifier) Broadcast(ev Event) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for ch := range n.listeners {
		select {
		case <-ch: // drop the stale event
		default:
		}
		ch <- ev
	}
}

// Len returns the number of subscribed listeners.
func (n *Notifier) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.listeners)
}
