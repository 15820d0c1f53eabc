package monitor

import "errors"

var (
	// ErrNameConflict is returned by Add when the name is already registered.
	// Add is intentionally non-idempotent: retrying with the same name fails.
	ErrNameConflict = errors.New("monitor name already registered")

	// ErrNotFound is returned when operating on an unknown monitor name.
	ErrNotFound = errors.New("monitor not found")

	// ErrInvalidInterval is returned for non-positive or too-small intervals.
	ErrInvalidInterval = errors.New("invalid interval")

	// ErrInvalidName is returned by Add for an empty name or URL.
	ErrInvalidName = errors.New("monitor name and url must be non-empty")
)
