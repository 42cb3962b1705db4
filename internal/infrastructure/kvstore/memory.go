package kvstore

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero = never
}

// Memory is an in-process Store. Expired fields are dropped lazily on access
// and by Purge.
type Memory struct {
	mu     sync.Mutex
	now    func() time.Time
	hashes map[string]map[string]memoryEntry
	closed bool
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory creates an empty in-process store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		now:    time.Now,
		hashes: make(map[string]map[string]memoryEntry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// HGet returns the field value if present and not expired.
func (m *Memory) HGet(_ context.Context, hash, field string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return "", false, ErrClosed
	}
	e, ok := m.lookup(hash, field)
	if !ok {
		return "", false, nil
	}
	return e.value, true, nil
}

// HSet stores the value and clears any TTL on the field.
func (m *Memory) HSet(_ context.Context, hash, field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	fields, ok := m.hashes[hash]
	if !ok {
		fields = make(map[string]memoryEntry)
		m.hashes[hash] = fields
	}
	fields[field] = memoryEntry{value: value}
	return nil
}

// HExpire sets a TTL on an existing field. Missing fields are ignored.
func (m *Memory) HExpire(_ context.Context, hash, field string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	e, ok := m.lookup(hash, field)
	if !ok {
		return nil
	}
	e.expiresAt = m.now().Add(ttl)
	m.hashes[hash][field] = e
	return nil
}

// HDel removes a field.
func (m *Memory) HDel(_ context.Context, hash, field string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.delete(hash, field)
	return nil
}

// Purge drops every expired field and returns how many were removed.
func (m *Memory) Purge(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrClosed
	}
	now := m.now()
	var removed int64
	for hash, fields := range m.hashes {
		for field, e := range fields {
			if expired(e, now) {
				delete(fields, field)
				removed++
			}
		}
		if len(fields) == 0 {
			delete(m.hashes, hash)
		}
	}
	return removed, nil
}

// Close releases the store. Further operations fail with ErrClosed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.hashes = nil
	return nil
}

// lookup must be called with mu held.
func (m *Memory) lookup(hash, field string) (memoryEntry, bool) {
	e, ok := m.hashes[hash][field]
	if !ok {
		return memoryEntry{}, false
	}
	if expired(e, m.now()) {
		m.delete(hash, field)
		return memoryEntry{}, false
	}
	return e, true
}

func (m *Memory) delete(hash, field string) {
	fields, ok := m.hashes[hash]
	if !ok {
		return
	}
	delete(fields, field)
	if len(fields) == 0 {
		delete(m.hashes, hash)
	}
}

func expired(e memoryEntry, now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}
