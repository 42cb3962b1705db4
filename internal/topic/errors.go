package topic

import "errors"

// Domain errors for the topic package.
var (
	// ErrInvalidTemplate is returned when the topic templates document is malformed.
	ErrInvalidTemplate = errors.New("invalid topic template")
)
