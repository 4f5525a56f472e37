package cli

import (
	"errors"
	"fmt"
)

// ExitError carries a process exit code out of a command.
//
// Cobra RunE functions return it instead of calling os.Exit, so the code
// travels up to [RunWithConfig], which reads it with [IsExitError] and
// reports it in [ExecuteResult]. Only [Execute] ends the process.
//
// Commands that have already told the user what went wrong (a failed
// workflow summary, an invalid validation report) return an ExitError so
// [Execute] does not print the error a second time.
type ExitError struct {
	// Code is the exit code handed to the shell.
	// 0 = success, 1 = workflow or validation failure.
	Code int
}

// Error implements the error interface as "exit status N", the same wording
// os/exec uses for a failed subprocess.
func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// NewExitError creates an [ExitError] with the given code.
//
// Use it from a RunE function once the failure has been reported:
//
//	if !summary.Success {
//	    return NewExitError(1)
//	}
func NewExitError(code int) *ExitError {
	return &ExitError{Code: code}
}

// IsExitError reports whether err carries an [ExitError] and returns its
// code.
//
// The whole chain is searched, so an ExitError wrapped with
// fmt.Errorf("...: %w") still counts. Returns (0, false) for nil and for
// any other error; [RunWithConfig] maps those to exit code 1:
//
//	if code, ok := IsExitError(err); ok {
//	    return ExecuteResult{ExitCode: code, Err: err}
//	}
//	return ExecuteResult{ExitCode: 1, Err: err}
func IsExitError(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}
