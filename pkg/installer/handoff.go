// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/pakt/pakt/internal/fsutil"
	"github.com/pakt/pakt/pkg/pkgmeta"
)

type (
	// InstalledPackage is a package on disk and where it lives.
	InstalledPackage struct {
		Package *pkgmeta.Package
		Path    string
	}

	// AutoloadHandoff receives the final installed set after a fully
	// successful run, typically to build a class map.
	AutoloadHandoff interface {
		Dump(ctx context.Context, pkgs []InstalledPackage) error
	}

	// JSONHandoff writes <VendorDir>/pakt/installed_paths.json.
	JSONHandoff struct {
		VendorDir string
	}

	handoffEntry struct {
		Name     string          `json:"name"`
		Version  string          `json:"version"`
		Type     string          `json:"type"`
		Path     string          `json:"path"`
		Autoload json.RawMessage `json:"autoload,omitempty"`
	}
)

// Path returns the file Dump writes.
func (h JSONHandoff) Path() string {
	return filepath.Join(h.VendorDir, "pakt", "installed_paths.json")
}

// Dump implements AutoloadHandoff. Paths are written relative to VendorDir
// with forward slashes.
func (h JSONHandoff) Dump(_ context.Context, pkgs []InstalledPackage) error {
	entries := make([]handoffEntry, 0, len(pkgs))
	for _, ip := range pkgs {
		rel, err := filepath.Rel(h.VendorDir, ip.Path)
		if err != nil {
			rel = ip.Path
		}
		entries = append(entries, handoffEntry{
			Name:     ip.Package.Name,
			Version:  ip.Package.Version.Normalized,
			Type:     ip.Package.Type,
			Path:     filepath.ToSlash(rel),
			Autoload: ip.Package.Extra["autoload"],
		})
	}
	data, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return fmt.Errorf("encode autoload handoff: %w", err)
	}
	return fsutil.WriteFileAtomic(h.Path(), append(data, '\n'))
}
