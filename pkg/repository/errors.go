// SPDX-License-Identifier: MPL-2.0

package repository

import (
	"errors"
	"fmt"
)

// ErrRepositoryUnavailable is the sentinel error wrapped by UnavailableError.
var ErrRepositoryUnavailable = errors.New("repository unavailable")

// UnavailableError reports a backend that could not be reached or whose
// metadata could not be decoded.
type UnavailableError struct {
	Repository string
	Reason     string
	Err        error
}

// Error implements the error interface.
func (e *UnavailableError) Error() string {
	msg := fmt.Sprintf("repository %s is unavailable", e.Repository)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both ErrRepositoryUnavailable and the underlying cause.
func (e *UnavailableError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrRepositoryUnavailable}
	}
	return []error{ErrRepositoryUnavailable, e.Err}
}

func unavailable(repo, reason string, err error) error {
	return &UnavailableError{Repository: repo, Reason: reason, Err: err}
}
