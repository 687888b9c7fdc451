package domain

import "errors"

var (
	// ErrUnauthenticated is returned when no valid principal backs a request.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden is returned when the principal lacks the required role.
	ErrForbidden = errors.New("not allowed")
	// ErrNotFound indicates the referenced question does not exist or is no longer current.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("invalid input")
	// ErrConflict indicates a duplicate record, e.g. a second answer for the same user and question.
	ErrConflict = errors.New("conflict")
)

// Kind values carried to clients alongside error messages.
const (
	KindAuthentication = "authentication"
	KindAuthorization  = "authorization"
	KindNotFound       = "not_found"
	KindValidation     = "validation"
	KindConflict       = "conflict"
	KindInternal       = "internal"
)

// KindOf classifies err into one of the Kind values. Errors that do not wrap
// a domain sentinel are internal.
func KindOf(err error) string {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return KindAuthentication
	case errors.Is(err, ErrForbidden):
		return KindAuthorization
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConflict):
		return KindConflict
	default:
		return KindInternal
	}
}
