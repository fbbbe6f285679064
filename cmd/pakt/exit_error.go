// SPDX-License-Identifier: MPL-2.0

package cmd

import "fmt"

// ExitCode is a process exit status.
type ExitCode int

const (
	// ExitFailure reports a failed operation such as a download or a script.
	ExitFailure ExitCode = 1
	// ExitResolution reports requirements that could not be resolved.
	ExitResolution ExitCode = 2
	// ExitInvalidInput reports a bad manifest, configuration or argument.
	ExitInvalidInput ExitCode = 3
)

// ExitError signals a non-zero exit code without forcing os.Exit in RunE handlers.
type ExitError struct {
	Code ExitCode
	Err  error
}

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}
