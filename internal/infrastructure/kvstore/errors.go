package kvstore

import "errors"

// Domain errors for the kvstore package.
var (
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("kvstore closed")

	// ErrInvalidTTL is returned when HExpire is called with a non-positive TTL.
	ErrInvalidTTL = errors.New("kvstore ttl must be positive")

	// ErrUnknownBackend is returned by Open for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown kvstore backend")
)
