package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates a caller supplied value that fails validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDataInconsistency indicates stored records disagree with each other.
	ErrDataInconsistency = errors.New("data inconsistency")
	// ErrConflict indicates an operation not allowed in the current state.
	ErrConflict = errors.New("conflict")
)
