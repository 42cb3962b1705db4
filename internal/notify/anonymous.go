package notify

import (
	"sync"
	"time"
)

// AnonymousRegistry remembers topic user names that could not be notified,
// so their traffic is ignored for a while instead of being looked up again.
type AnonymousRegistry struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	until map[string]time.Time
}

// NewAnonymousRegistry creates a registry whose marks last ttl.
func NewAnonymousRegistry(ttl time.Duration) *AnonymousRegistry {
	return &AnonymousRegistry{
		ttl:   ttl,
		now:   time.Now,
		until: make(map[string]time.Time),
	}
}

// Mark flags the name as anonymous for the registry's TTL. Lapsed marks
// of other names are dropped at the same time.
func (r *AnonymousRegistry) Mark(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for n, until := range r.until {
		if !now.Before(until) {
			delete(r.until, n)
		}
	}
	r.until[name] = now.Add(r.ttl)
}

// IsAnonymous reports whether the name is currently flagged.
func (r *AnonymousRegistry) IsAnonymous(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	until, ok := r.until[name]
	if !ok {
		return false
	}
	if !r.now().Before(until) {
		delete(r.until, name)
		return false
	}
	return true
}
