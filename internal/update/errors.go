package update

import (
	"errors"
	"fmt"
)

// Error codes for update operations.
const (
	ErrCodeInvalidVersion  = "INVALID_VERSION"
	ErrCodeFeedUnavailable = "FEED_UNAVAILABLE"
)

// Error represents an update-specific error with a code.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsCode reports whether err wraps an *Error with the given code.
func IsCode(err error, code string) bool {
	var ue *Error
	return errors.As(err, &ue) && ue.Code == code
}
