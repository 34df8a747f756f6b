package events

import (
	"sync"
)

// Event carries a state snapshot for one browser session.
type Event struct {
	SessionID string `json:"session_id"`
	Data      any    `json:"data"`
}

// Broker manages SSE subscribers per session.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Event]struct{}
	closed      bool
}

// NewBroker constructs a broker instance.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[string]map[chan Event]struct{}),
	}
}

// Subscribe returns a channel receiving the session's events and a func that
// unsubscribes and closes it. After Close the channel is already closed.
func (b *Broker) Subscribe(sessionID string) (<-chan Event, func()) {
	ch := make(chan Event, 8)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	if b.subscribers[sessionID] == nil {
		b.subscribers[sessionID] = make(map[chan Event]struct{})
	}
	b.subscribers[sessionID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() { b.unsubscribe(sessionID, ch) })
	}
}

func (b *Broker) unsubscribe(sessionID string, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Close may have ended the subscription already.
	if _, ok := b.subscribers[sessionID][ch]; !ok {
		return
	}
	delete(b.subscribers[sessionID], ch)
	if len(b.subscribers[sessionID]) == 0 {
		delete(b.subscribers, sessionID)
	}
	close(ch)
}

// Publish fans the event out to the session's subscribers.
func (b *Broker) Publish(evt Event) {
	b.mu.RLock()
	for ch := range b.subscribers[evt.SessionID] {
		select {
		case ch <- evt:
		default:
			// drop if subscriber is slow
		}
	}
	b.mu.RUnlock()
}

// Close ends every subscription so open streams return.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for sessionID, set := range b.subscribers {
		for ch := range set {
			close(ch)
		}
		delete(b.subscribers, sessionID)
	}
}
