package model

import "errors"

// Error taxonomy shared by the stores and the lending engine. Callers match
// with errors.Is; the API layer maps each class to an HTTP status.
var (
	// ErrNotFound marks a missing member or item.
	ErrNotFound = errors.New("not found")

	// ErrValidation marks malformed input (bad item code, empty required
	// field, out-of-range rating).
	ErrValidation = errors.New("invalid input")

	// ErrInvalidState marks an operation rejected by the current lending
	// state (inactive account, already borrowed, no open loan).
	ErrInvalidState = errors.New("invalid state")

	// ErrCorrupt marks an internal invariant breach, e.g. available copies
	// exceeding the total. This is a defect, never a user error.
	ErrCorrupt = errors.New("internal state corrupt")
)
