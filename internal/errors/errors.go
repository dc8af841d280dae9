package errors

import (
	"fmt"
)

type ErrorCode string

type ServiceError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// New returns a ServiceError with the given code and a formatted message.
func New(code ErrorCode, format string, args ...any) ServiceError {
	return ServiceError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap returns a ServiceError with the given code that wraps err.
func Wrap(code ErrorCode, err error, message string) ServiceError {
	return ServiceError{
		Code:    code,
		Message: fmt.Sprintf("%s: %v", message, err),
		Err:     err,
	}
}

func (se ServiceError) Error() string {
	return se.Message
}

func (se ServiceError) Unwrap() error {
	return se.Err
}

// Is reports whether target is a ServiceError with the same code, so that
// sentinel values can be matched with errors.Is regardless of the message.
func (se ServiceError) Is(target error) bool {
	t, ok := target.(ServiceError)
	if !ok {
		return false
	}

	return t.Code == se.Code
}
