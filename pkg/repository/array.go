// SPDX-License-Identifier: MPL-2.0

package repository

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/pakt/pakt/pkg/pkgmeta"
	"github.com/pakt/pakt/pkg/version"
)

// ArrayRepository is an in-memory repository. It is safe for concurrent use.
type ArrayRepository struct {
	name string

	mu       sync.RWMutex
	packages []*pkgmeta.Package
}

// NewArrayRepository returns a repository holding pkgs.
func NewArrayRepository(name string, pkgs ...*pkgmeta.Package) *ArrayRepository {
	r := &ArrayRepository{name: name}
	for _, p := range pkgs {
		r.AddPackage(p)
	}
	return r
}

// Name implements Repository.
func (r *ArrayRepository) Name() string { return r.name }

// FindPackages implements Repository.
func (r *ArrayRepository) FindPackages(_ context.Context, name string, c version.Constraint) ([]*pkgmeta.Package, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return filterPackages(r.packages, name, c), nil
}

// PackageNames implements Lister.
func (r *ArrayRepository) PackageNames(context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make(map[string]struct{}, len(r.packages))
	for _, p := range r.packages {
		names[p.Name] = struct{}{}
	}
	return slices.Sorted(maps.Keys(names)), nil
}

// Packages returns all packages sorted by name then version.
func (r *ArrayRepository) Packages() []*pkgmeta.Package {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := slices.Clone(r.packages)
	sortPackages(out)
	return out
}

// AddPackage adds pkg, replacing any entry with the same name and version.
func (r *ArrayRepository) AddPackage(pkg *pkgmeta.Package) {
	if pkg == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.packages {
		if p.UniqueName() == pkg.UniqueName() {
			r.packages[i] = pkg
			return
		}
	}
	r.packages = append(r.packages, pkg)
}

// RemovePackage removes the entry with pkg's name and version and reports
// whether one existed.
func (r *ArrayRepository) RemovePackage(pkg *pkgmeta.Package) bool {
	if pkg == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.packages {
		if p.UniqueName() == pkg.UniqueName() {
			r.packages = slices.Delete(r.packages, i, i+1)
			return true
		}
	}
	return false
}

// HasPackage reports whether an entry with pkg's name and version exists.
func (r *ArrayRepository) HasPackage(pkg *pkgmeta.Package) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.packages {
		if p.UniqueName() == pkg.UniqueName() {
			return true
		}
	}
	return false
}

// Count returns the number of packages.
func (r *ArrayRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.packages)
}

func (r *ArrayRepository) replaceAll(pkgs []*pkgmeta.Package) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.packages = slices.Clone(pkgs)
}
