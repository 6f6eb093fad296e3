package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a unique key (email, registration number,
	// user/event pair) is already taken.
	ErrDuplicate = errors.New("persistence: duplicate")
	// ErrConstraintViolation is returned when a write would break a referential
	// or check constraint, for example deleting an event that still has registrations.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
)
