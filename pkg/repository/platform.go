// SPDX-License-Identifier: MPL-2.0

package repository

import (
	"fmt"
	"maps"
	"slices"

	"github.com/pakt/pakt/pkg/pkgmeta"
	"github.com/pakt/pakt/pkg/version"
)

// PlatformRepository exposes the runtime and its extensions ("php",
// "ext-json", ...) as virtual packages. They satisfy requirements but are
// never downloaded.
type PlatformRepository struct {
	*ArrayRepository
}

// NewPlatformRepository builds a platform repository from name → version.
func NewPlatformRepository(versions map[string]string) (*PlatformRepository, error) {
	repo := &PlatformRepository{ArrayRepository: NewArrayRepository("platform")}
	for _, name := range slices.Sorted(maps.Keys(versions)) {
		v, err := version.Normalize(versions[name])
		if err != nil {
			return nil, fmt.Errorf("platform package %s: %w", name, err)
		}
		pkg := pkgmeta.New(name, v)
		pkg.Type = pkgmeta.TypePlatform
		repo.AddPackage(pkg)
	}
	return repo, nil
}
