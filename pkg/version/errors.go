// SPDX-License-Identifier: MPL-2.0

package version

import (
	"errors"
	"fmt"
)

// ErrInvalidVersionFormat is the sentinel error wrapped by InvalidVersionFormatError.
var ErrInvalidVersionFormat = errors.New("invalid version format")

// InvalidVersionFormatError is returned when a version or constraint string
// cannot be parsed.
type InvalidVersionFormatError struct {
	Value  string
	Reason string
}

// Error implements the error interface.
func (e *InvalidVersionFormatError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid version format %q: %s", e.Value, e.Reason)
	}
	return fmt.Sprintf("invalid version format %q", e.Value)
}

// Unwrap returns ErrInvalidVersionFormat so callers can use errors.Is for programmatic detection.
func (e *InvalidVersionFormatError) Unwrap() error { return ErrInvalidVersionFormat }

func invalid(value, reason string) error {
	return &InvalidVersionFormatError{Value: value, Reason: reason}
}
