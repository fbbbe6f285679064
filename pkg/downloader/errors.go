// SPDX-License-Identifier: MPL-2.0

package downloader

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingSourceReference is the sentinel wrapped by MissingSourceReferenceError.
	ErrMissingSourceReference = errors.New("missing source reference")
	// ErrDirtyWorkingCopy is the sentinel wrapped by DirtyWorkingCopyError.
	ErrDirtyWorkingCopy = errors.New("working copy has uncommitted changes")
	// ErrRemovalFailed is the sentinel wrapped by RemovalFailedError.
	ErrRemovalFailed = errors.New("removal failed")
	// ErrChecksumMismatch is the sentinel wrapped by ChecksumMismatchError.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrNoInstallationSource is the sentinel wrapped by NoInstallationSourceError.
	ErrNoInstallationSource = errors.New("no installation source")
	// ErrUnsupportedType is returned for unknown source or dist types.
	ErrUnsupportedType = errors.New("unsupported type")
	// ErrUnsafeArgument is the sentinel wrapped by UnsafeArgumentError.
	ErrUnsafeArgument = errors.New("unsafe command argument")
)

type (
	// MissingSourceReferenceError reports a VCS package without a reference
	// to check out.
	MissingSourceReferenceError struct {
		Package string
	}

	// DirtyWorkingCopyError reports local modifications that block an
	// update or removal. Changes holds the VCS status output.
	DirtyWorkingCopyError struct {
		Path    string
		Changes string
	}

	// RemovalFailedError reports a package directory that could not be
	// deleted completely.
	RemovalFailedError struct {
		Path string
		Err  error
	}

	// ChecksumMismatchError reports a dist archive whose sha1 differs from
	// the published shasum.
	ChecksumMismatchError struct {
		URL      string
		Expected string
		Actual   string
	}

	// NoInstallationSourceError reports a package with neither a source nor
	// a dist.
	NoInstallationSourceError struct {
		Package string
	}

	// UnsafeArgumentError reports a source url or reference that a VCS
	// command would parse as an option.
	UnsafeArgumentError struct {
		Package string
		Field   string
		Value   string
	}
)

// Error implements the error interface.
func (e *MissingSourceReferenceError) Error() string {
	return fmt.Sprintf("package %s is missing reference information", e.Package)
}

// Unwrap returns ErrMissingSourceReference.
func (e *MissingSourceReferenceError) Unwrap() error { return ErrMissingSourceReference }

// Error implements the error interface.
func (e *DirtyWorkingCopyError) Error() string {
	return fmt.Sprintf("source directory %s has uncommitted changes", e.Path)
}

// Unwrap returns ErrDirtyWorkingCopy.
func (e *DirtyWorkingCopyError) Unwrap() error { return ErrDirtyWorkingCopy }

// Error implements the error interface.
func (e *RemovalFailedError) Error() string {
	msg := fmt.Sprintf("could not completely delete %s", e.Path)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes ErrRemovalFailed and the underlying cause.
func (e *RemovalFailedError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrRemovalFailed}
	}
	return []error{ErrRemovalFailed, e.Err}
}

// Error implements the error interface.
func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum of %s is %s, expected %s", e.URL, e.Actual, e.Expected)
}

// Unwrap returns ErrChecksumMismatch.
func (e *ChecksumMismatchError) Unwrap() error { return ErrChecksumMismatch }

// Error implements the error interface.
func (e *NoInstallationSourceError) Error() string {
	return fmt.Sprintf("package %s has neither a source nor a dist", e.Package)
}

// Unwrap returns ErrNoInstallationSource.
func (e *NoInstallationSourceError) Unwrap() error { return ErrNoInstallationSource }

// Error implements the error interface.
func (e *UnsafeArgumentError) Error() string {
	return fmt.Sprintf("package %s has a source %s starting with '-': %q", e.Package, e.Field, e.Value)
}

// Unwrap returns ErrUnsafeArgument.
func (e *UnsafeArgumentError) Unwrap() error { return ErrUnsafeArgument }
