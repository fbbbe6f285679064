// SPDX-License-Identifier: MPL-2.0

package resolver

import (
	"fmt"
	"maps"
	"slices"

	"github.com/pakt/pakt/pkg/pkgmeta"
	"github.com/pakt/pakt/pkg/repository"
)

// Result maps each resolved package name to the chosen candidate.
type Result struct {
	root     []pkgmeta.Link
	selected map[string]repository.Candidate
}

// NewResult builds a Result from explicit selections, mainly for planning
// tests and for callers that already know the target set.
func NewResult(root []pkgmeta.Link, selected ...repository.Candidate) *Result {
	r := &Result{root: slices.Clone(root), selected: make(map[string]repository.Candidate, len(selected))}
	for _, c := range selected {
		r.selected[c.Package.Name] = c
	}
	return r
}

// Len returns the number of resolved packages.
func (r *Result) Len() int { return len(r.selected) }

// Names returns the resolved package names in sorted order.
func (r *Result) Names() []string {
	return slices.Sorted(maps.Keys(r.selected))
}

// Candidate returns the selection for name.
func (r *Result) Candidate(name string) (repository.Candidate, bool) {
	c, ok := r.selected[name]
	return c, ok
}

// Package returns the selected package for name, or nil.
func (r *Result) Package(name string) *pkgmeta.Package {
	if c, ok := r.selected[name]; ok {
		return c.Package
	}
	return nil
}

// Packages returns the selected packages sorted by name.
func (r *Result) Packages() []*pkgmeta.Package {
	out := make([]*pkgmeta.Package, 0, len(r.selected))
	for _, name := range r.Names() {
		out = append(out, r.selected[name].Package)
	}
	return out
}

// Root returns the root requirements the result was resolved for.
func (r *Result) Root() []pkgmeta.Link { return slices.Clone(r.root) }

// Verify re-checks that every root requirement and every requirement of a
// selected package is met by the selection.
func (r *Result) Verify() error {
	check := func(from string, l pkgmeta.Link) error {
		sel, ok := r.selected[l.Target]
		if !ok {
			return fmt.Errorf("%w: %s requires %s %s but it is not selected", ErrUnsatisfiableConstraints, from, l.Target, l.PrettyConstraint)
		}
		if !l.Constraint.Matches(sel.Package.Version) {
			return fmt.Errorf("%w: %s requires %s %s but %s is selected", ErrUnsatisfiableConstraints, from, l.Target, l.PrettyConstraint, sel.Package.PrettyVersion())
		}
		return nil
	}
	for _, l := range r.root {
		if err := check("root", l); err != nil {
			return err
		}
	}
	for _, name := range r.Names() {
		pkg := r.selected[name].Package
		for _, l := range pkg.Requires {
			if err := check(pkg.String(), l); err != nil {
				return err
			}
		}
	}
	return nil
}
