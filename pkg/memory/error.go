package memory

import "errors"

var (
	// ErrNotConfigured is returned when memory operations are attempted
	// but no memory driver has been configured.
	ErrNotConfigured = errors.New("memory not configured")

	// ErrNotFound is returned when a subject has no profile.
	ErrNotFound = errors.New("profile not found")

	// ErrInvalidKey is returned for a subject key that normalizes to "".
	ErrInvalidKey = errors.New("invalid subject key")
)
