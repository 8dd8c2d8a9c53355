package workflow

import "errors"

var (
	// ErrNotFound is returned when an entity id does not resolve
	ErrNotFound = errors.New("entity not found")

	// ErrIllegalTransition is returned when the role/state combination does
	// not permit the requested target, including self-loops
	ErrIllegalTransition = errors.New("illegal state transition")

	// ErrValidation is returned when the transition input is malformed,
	// e.g. a negative action without a reason
	ErrValidation = errors.New("validation failed")

	// ErrVersionConflict is returned when a concurrent writer won the
	// optimistic version check
	ErrVersionConflict = errors.New("entity version conflict")
)
