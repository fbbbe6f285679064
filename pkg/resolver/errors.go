// SPDX-License-Identifier: MPL-2.0

package resolver

import (
	"errors"
	"strings"

	"github.com/pakt/pakt/pkg/pkgmeta"
)

// ErrUnsatisfiableConstraints is the sentinel wrapped by
// UnsatisfiableConstraintsError.
var ErrUnsatisfiableConstraints = errors.New("unsatisfiable constraints")

type (
	// Requirement is a constraint placed on a package together with the
	// chain of selections that introduced it, starting at "root".
	Requirement struct {
		Chain []string
		Link  pkgmeta.Link
	}

	// UnsatisfiableConstraintsError reports the first conflict met on the
	// most preferred search branch: the package that could not be selected
	// and every requirement placed on it at that point.
	UnsatisfiableConstraintsError struct {
		Package      string
		Requirements []Requirement
		// Missing is set when no repository knows the package at all.
		Missing bool
		// Suggestions are similarly named packages, for missing root
		// requirements.
		Suggestions []string
	}
)

// String renders the requirement as "root → b/pkg 1.0.0 requires a/pkg ^2.0".
func (r Requirement) String() string {
	return strings.Join(r.Chain, " → ") + " requires " + r.Link.Target + " " + r.Link.PrettyConstraint
}

// Error implements the error interface.
func (e *UnsatisfiableConstraintsError) Error() string {
	var b strings.Builder
	if e.Missing {
		b.WriteString("package " + e.Package + " could not be found in any repository")
		if len(e.Suggestions) > 0 {
			b.WriteString(" (did you mean " + strings.Join(e.Suggestions, ", ") + "?)")
		}
	} else {
		b.WriteString("no version of " + e.Package + " satisfies all requirements")
	}
	for _, r := range e.Requirements {
		b.WriteString("\n  - " + r.String())
	}
	return b.String()
}

// Unwrap returns ErrUnsatisfiableConstraints.
func (e *UnsatisfiableConstraintsError) Unwrap() error { return ErrUnsatisfiableConstraints }
