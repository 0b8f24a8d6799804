// Package errors maps planner failures to process exit codes.
package errors

// ExitCodeError carries the exit code the CLI should terminate with.
type ExitCodeError struct {
	code ExitCode
	error
}

// NewError wraps err with an exit code. A nil err yields a nil *ExitCodeError.
func NewError(err error, exitCode ExitCode) *ExitCodeError {
	if err == nil {
		return nil
	}
	return &ExitCodeError{exitCode, err}
}

func (e *ExitCodeError) GetExitCode() ExitCode {
	if e == nil {
		return 0
	}
	return e.code
}

// Cause lets github.com/pkg/errors unwrap to the underlying error.
func (e *ExitCodeError) Cause() error {
	return e.error
}

// GetExitCode returns the exit code carried by err, GenericFailureExitCode
// for any other non-nil error, and 0 for nil.
func GetExitCode(err error) ExitCode {
	if err == nil {
		return 0
	}
	if e, ok := err.(*ExitCodeError); ok {
		return e.GetExitCode()
	}
	return GenericFailureExitCode
}
