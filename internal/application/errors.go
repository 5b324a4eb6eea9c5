package application

import (
	"errors"

	"github.com/example/clubsite/internal/booking"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a uniqueness rule refuses a create.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrInvalidCredentials is returned when authentication fails.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
)

// Rejection is the typed outcome of an admission rule refusing a booking
// operation. It is a domain verdict, not a failure: the snapshot was read and
// the rules said no.
type Rejection struct {
	Reason booking.Reason
}

// Error implements the error interface.
func (r *Rejection) Error() string {
	if r == nil {
		return ""
	}
	return "booking rejected: " + string(r.Reason)
}

// Reject wraps a reason code in a Rejection error.
func Reject(reason booking.Reason) *Rejection {
	return &Rejection{Reason: reason}
}

// RejectionReason extracts the reason code when err is a Rejection.
func RejectionReason(err error) (booking.Reason, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej.Reason, true
	}
	return booking.ReasonNone, false
}

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

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}
