package notify

import "errors"

var (
	// ErrNotConfigured is returned when the skill id or token is missing.
	ErrNotConfigured = errors.New("skill callbacks not configured")

	// ErrCallbackRejected is returned when the platform answers with a
	// status other than "ok". The decoded response is returned alongside.
	ErrCallbackRejected = errors.New("skill callback rejected")

	// ErrBadResponse is returned when the platform response cannot be decoded.
	ErrBadResponse = errors.New("unexpected skill callback response")
)
