package catalog

import "errors"

var (
	// ErrForbidden is returned when the session has no admin grant with a
	// sufficient role. A missing session yields the same error.
	ErrForbidden = errors.New("admin access required")
	// ErrInvalid wraps input validation failures.
	ErrInvalid = errors.New("invalid input")
	// ErrInUse is returned when deleting a record other records still reference.
	ErrInUse = errors.New("record is still referenced")
)
