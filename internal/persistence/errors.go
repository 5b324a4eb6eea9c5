package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a uniqueness constraint is violated.
	ErrDuplicate = errors.New("persistence: duplicate")
	// ErrVersionConflict is returned when a commit carries a stale site version.
	ErrVersionConflict = errors.New("persistence: version conflict")
	// ErrConstraintViolation is returned when stored data would violate a schema constraint.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
)
