package session

import (
	"errors"
	"fmt"
)

// Error codes for authentication failures.
const (
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeWeakPassword       = "AUTH_WEAK_PASSWORD"
	CodeRateLimited        = "AUTH_RATE_LIMITED"
	CodeStoreFailed        = "AUTH_STORE_FAILED"

	CodeTokenInvalid       = "AUTH_TOKEN_INVALID"
	CodeTokenExpired       = "AUTH_TOKEN_EXPIRED"
	CodeTokenMalformed     = "AUTH_TOKEN_MALFORMED"
	CodeTokenSigningFailed = "AUTH_TOKEN_SIGNING_FAILED"
)

// Error is an authentication error with a stable code.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// ErrorCode lets loggers tag entries with the code.
func (e *Error) ErrorCode() string { return e.Code }

// NewError creates a new Error.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps cause with a coded Error.
func WrapError(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// HasCode reports whether err is (or wraps) an Error with the given code.
func HasCode(err error, code string) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
