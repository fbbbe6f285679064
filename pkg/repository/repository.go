// SPDX-License-Identifier: MPL-2.0

package repository

import (
	"cmp"
	"context"
	"slices"

	"github.com/pakt/pakt/pkg/pkgmeta"
	"github.com/pakt/pakt/pkg/version"
)

type (
	// Repository is a queryable source of package metadata.
	Repository interface {
		// Name identifies the repository in logs and error messages.
		Name() string
		// FindPackages returns every package called name that satisfies c,
		// in ascending version order. A nil constraint matches any version.
		FindPackages(ctx context.Context, name string, c version.Constraint) ([]*pkgmeta.Package, error)
	}

	// Notifier is implemented by repositories that want to hear about
	// installs of packages they provided. Notification is best-effort.
	Notifier interface {
		NotifyInstall(ctx context.Context, pkg *pkgmeta.Package, runID string) error
	}

	// Lister is implemented by repositories that can enumerate their
	// package names.
	Lister interface {
		PackageNames(ctx context.Context) ([]string, error)
	}

	// Writable is a repository whose contents can be changed and persisted,
	// such as the installed-package record.
	Writable interface {
		Repository
		Packages() []*pkgmeta.Package
		AddPackage(pkg *pkgmeta.Package)
		RemovePackage(pkg *pkgmeta.Package) bool
		Write(ctx context.Context) error
	}

	// Reloader is implemented by repositories backed by mutable storage.
	Reloader interface {
		Reload(ctx context.Context) error
	}

	// Candidate is a package paired with the repository that produced it.
	// Priority is the producing member's position in a composite; lower
	// wins ties.
	Candidate struct {
		Package  *pkgmeta.Package
		Origin   Repository
		Priority int
	}
)

// OriginName returns the name of the candidate's origin repository.
func (c Candidate) OriginName() string {
	if c.Origin == nil {
		return ""
	}
	return c.Origin.Name()
}

// filterPackages returns the packages matching name and c, sorted by
// ascending version.
func filterPackages(pkgs []*pkgmeta.Package, name string, c version.Constraint) []*pkgmeta.Package {
	name = pkgmeta.NormalizeName(name)
	var out []*pkgmeta.Package
	for _, p := range pkgs {
		if p.Name != name {
			continue
		}
		if c != nil && !c.Matches(p.Version) {
			continue
		}
		out = append(out, p)
	}
	sortPackages(out)
	return out
}

func sortPackages(pkgs []*pkgmeta.Package) {
	slices.SortStableFunc(pkgs, func(a, b *pkgmeta.Package) int {
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return version.Compare(a.Version, b.Version)
	})
}
