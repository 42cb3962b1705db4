package kvstore

import (
	"context"
	"time"
)

// Store is an expiring hash-field store with Redis hash semantics.
//
// Each (hash, field) pair holds a string value and an optional TTL set
// independently of the other fields of the same hash. HSet clears any TTL
// on the field. A missing or expired field reads as absent, not an error.
//
// Implementations are safe for concurrent use.
type Store interface {
	HGet(ctx context.Context, hash, field string) (value string, ok bool, err error)
	HSet(ctx context.Context, hash, field, value string) error
	HExpire(ctx context.Context, hash, field string, ttl time.Duration) error
	HDel(ctx context.Context, hash, field string) error
	Close() error
}

// Purger is a Store that keeps expired fields until they are purged.
// Memory and SQLite are Purgers; Redis expires fields on its own.
type Purger interface {
	Purge(ctx context.Context) (int64, error)
}

// RunPurge deletes expired fields every interval until ctx is cancelled.
// report, if non-nil, receives the outcome of every pass. Stores that are
// not Purgers return immediately.
func RunPurge(ctx context.Context, s Store, interval time.Duration, report func(removed int64, err error)) {
	p, ok := s.(Purger)
	if !ok || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.Purge(ctx)
			if report != nil {
				report(n, err)
			}
		}
	}
}
