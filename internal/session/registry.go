package session

import (
	"context"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/patrickmn/go-cache"
)

// DefaultTTL is how long an untouched session is kept.
const DefaultTTL = 30 * time.Minute

// Registry maps session ids to machines. Sessions expire after a period of
// inactivity; an expired session is reset so its preview gets released.
type Registry struct {
	mu       sync.Mutex
	items    *cache.Cache
	previews Releaser
}

// NewRegistry returns a registry whose machines release through previews.
func NewRegistry(ttl time.Duration, previews Releaser) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	items := cache.New(ttl, ttl/2)
	items.OnEvicted(func(id string, value interface{}) {
		machine, ok := value.(*Machine)
		if !ok {
			return
		}
		machine.Reset(context.Background())
		log.Infof("session %s closed", id)
	})
	return &Registry{items: items, previews: previews}
}

// Get returns the machine for id, creating an idle one when needed. Every
// call extends the session's lifetime.
func (r *Registry) Get(id string) *Machine {
	r.mu.Lock()
	defer r.mu.Unlock()

	if value, ok := r.items.Get(id); ok {
		machine := value.(*Machine)
		r.items.SetDefault(id, machine)
		return machine
	}

	// An expired entry would be overwritten without eviction; flush first.
	r.items.DeleteExpired()
	machine := NewMachine(r.previews)
	r.items.SetDefault(id, machine)
	return machine
}

// Lookup returns the machine for id without creating one or extending its
// lifetime.
func (r *Registry) Lookup(id string) (*Machine, bool) {
	value, ok := r.items.Get(id)
	if !ok {
		return nil, false
	}
	return value.(*Machine), true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	return r.items.ItemCount()
}

// Close ends every session.
func (r *Registry) Close() {
	r.items.DeleteExpired()
	for id := range r.items.Items() {
		r.items.Delete(id)
	}
}
