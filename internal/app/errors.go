package app

import "errors"

// Sentinel kinds for service errors.
var (
	// ErrIdentityRequired is returned when an action needs a local signing key.
	ErrIdentityRequired = errors.New("identity required")
	// ErrDuplicateEvent is returned when the same signed event is submitted twice.
	ErrDuplicateEvent = errors.New("event already published")
	// ErrInvalidScore is returned for negative scores.
	ErrInvalidScore = errors.New("score must not be negative")
)
