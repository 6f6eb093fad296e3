package application

import "errors"

var (
	// ErrNotFound is returned when the requested event, registration or user does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrForbidden is returned when the acting principal may not perform the operation.
	ErrForbidden = errors.New("application: forbidden")
	// ErrUnauthenticated is returned when a token is missing, malformed or expired.
	ErrUnauthenticated = errors.New("application: unauthenticated")
	// ErrAlreadyExists is returned when an account email or student id is taken.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrInvalidCredentials is returned when login credentials do not match.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrAccountDisabled is returned when a deactivated account tries to sign in.
	ErrAccountDisabled = errors.New("application: account disabled")

	// ErrDuplicateRegistration is returned when the user already holds a registration for the event.
	ErrDuplicateRegistration = errors.New("application: already registered for this event")
	// ErrEventInactive is returned when signing up for an event that is not active.
	ErrEventInactive = errors.New("application: event is not active")
	// ErrDeadlinePassed is returned when signing up at or after the registration deadline.
	ErrDeadlinePassed = errors.New("application: registration deadline has passed")
	// ErrEventAlreadyOccurred is returned when signing up at or after the event date.
	ErrEventAlreadyOccurred = errors.New("application: event has already occurred")
	// ErrCancellationClosed is returned when cancelling after the registration deadline.
	ErrCancellationClosed = errors.New("application: registration cannot be cancelled after the deadline")
	// ErrInvalidStatus is returned when a status value is outside its enumeration.
	ErrInvalidStatus = errors.New("application: invalid status")
	// ErrEventNotYetOccurred is returned when feedback is submitted before the event date.
	ErrEventNotYetOccurred = errors.New("application: feedback can only be submitted after the event")
	// ErrEventHasRegistrations is returned when deleting an event that registrations reference.
	ErrEventHasRegistrations = errors.New("application: event has registrations")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error. The first message per field wins.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

// NewValidationError builds a ValidationError from field/message pairs.
func NewValidationError(fieldErrors map[string]string) *ValidationError {
	vErr := &ValidationError{}
	for field, msg := range fieldErrors {
		vErr.add(field, msg)
	}
	return vErr
}
