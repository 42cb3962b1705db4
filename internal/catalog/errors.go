package catalog

import "errors"

var (
	// ErrUserNotFound is returned when no configured user matches a lookup.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidDocument is returned when a configuration document cannot be parsed.
	ErrInvalidDocument = errors.New("invalid catalog document")
)
