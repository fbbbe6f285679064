// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"errors"
	"fmt"
)

var (
	// ErrOperationFailed is the sentinel wrapped by OperationError.
	ErrOperationFailed = errors.New("operation failed")
	// ErrPackageNotFound is returned by CreateProject when no version of the
	// requested package exists.
	ErrPackageNotFound = errors.New("package not found")
	// ErrDirectoryNotEmpty is returned by CreateProject when the target
	// directory already has content.
	ErrDirectoryNotEmpty = errors.New("directory not empty")
	// ErrHookBlocked is returned when a pre-operation script exits non-zero.
	ErrHookBlocked = errors.New("blocked by script")
)

type (
	// OperationError reports the failure of one operation.
	OperationError struct {
		Operation Operation
		Err       error
	}

	// PackageNotFoundError reports a create-project target that no
	// repository provides.
	PackageNotFoundError struct {
		Package string
		Version string
	}
)

// Error implements the error interface.
func (e *OperationError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Operation.Kind(), e.Operation.Package().Name, e.Err)
}

// Unwrap exposes ErrOperationFailed and the underlying cause.
func (e *OperationError) Unwrap() []error {
	return []error{ErrOperationFailed, e.Err}
}

// Error implements the error interface.
func (e *PackageNotFoundError) Error() string {
	if e.Version != "" {
		return fmt.Sprintf("could not find package %s with version %s", e.Package, e.Version)
	}
	return fmt.Sprintf("could not find package %s", e.Package)
}

// Unwrap returns ErrPackageNotFound.
func (e *PackageNotFoundError) Unwrap() error { return ErrPackageNotFound }
