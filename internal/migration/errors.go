package migration

import (
	"errors"
	"fmt"
)

// Error codes for migration operations.
const (
	ErrCodeMigrationInProgress = "MIGRATION_IN_PROGRESS"
	ErrCodeMigrationFailed     = "MIGRATION_FAILED"
	ErrCodePartialMigration    = "PARTIAL_MIGRATION"
)

// Error represents a migration-specific error with a code. RolledBack is
// set when data had started moving and every change was undone.
type Error struct {
	Code       string
	Message    string
	Cause      error
	RolledBack bool
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
	var me *Error
	return errors.As(err, &me) && me.Code == code
}

// Code returns the code of the first *Error in err's chain, or "".
func Code(err error) string {
	var me *Error
	if errors.As(err, &me) {
		return me.Code
	}
	return ""
}

// IsRolledBack reports whether err describes a failure that was rolled back.
func IsRolledBack(err error) bool {
	var me *Error
	return errors.As(err, &me) && me.RolledBack
}
