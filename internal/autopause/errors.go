package autopause

import "errors"

var (
	// ErrInvalidState is returned when an operation is not allowed from the
	// instance's current phase. Nothing is mutated.
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidID is returned for empty instance or owner IDs
	ErrInvalidID = errors.New("invalid id")
)
