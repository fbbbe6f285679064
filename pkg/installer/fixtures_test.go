// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pakt/pakt/pkg/downloader"
	"github.com/pakt/pakt/pkg/manifest"
	"github.com/pakt/pakt/pkg/pkgmeta"
	"github.com/pakt/pakt/pkg/repository"
	"github.com/pakt/pakt/pkg/resolver"
	"github.com/pakt/pakt/pkg/version"
)

// notifyingRepo records install notifications.
type notifyingRepo struct {
	*repository.ArrayRepository

	mu       sync.Mutex
	notified []string
	runIDs   []string
	err      error
}

func (n *notifyingRepo) NotifyInstall(_ context.Context, pkg *pkgmeta.Package, runID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notified = append(n.notified, pkg.Name+"@"+pkg.Version.Normalized)
	n.runIDs = append(n.runIDs, runID)
	return n.err
}

// writeZip writes a dist archive with files under a single top directory.
func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, body := range files {
		w, err := zw.Create("pkg/" + name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

// distPackage builds a package whose dist is a zip in distDir.
func distPackage(t *testing.T, distDir, name, ver string, requires map[string]string) *pkgmeta.Package {
	t.Helper()
	p := pkgmeta.New(name, version.MustNormalize(ver))
	links, err := pkgmeta.ParseLinks(p.Name, requires)
	require.NoError(t, err)
	p.Requires = links

	archive := filepath.Join(distDir, filepath.FromSlash(p.Name)+"-"+ver+".zip")
	writeZip(t, archive, map[string]string{"VERSION": ver, "NAME": p.Name})
	p.Dist = &pkgmeta.Dist{Type: downloader.DistZip, URL: archive, Reference: ver}
	return p
}

type project struct {
	dir       string
	vendor    string
	repo      *notifyingRepo
	installed *repository.FilesystemRepository
}

func newProject(t *testing.T, pkgs ...*pkgmeta.Package) *project {
	t.Helper()
	dir := t.TempDir()
	vendor := filepath.Join(dir, "vendor")
	installed, err := repository.NewInstalledRepository(filepath.Join(vendor, "pakt", "installed.json"))
	require.NoError(t, err)
	return &project{
		dir:       dir,
		vendor:    vendor,
		repo:      &notifyingRepo{ArrayRepository: repository.NewArrayRepository("fixtures", pkgs...)},
		installed: installed,
	}
}

func (p *project) options() Options {
	return Options{
		Repositories: repository.NewCompositeRepository(nil, repository.Member{Repository: p.repo}),
		Installed:    p.installed,
		Downloads:    downloader.NewManager(downloader.ManagerOptions{}),
		VendorDir:    p.vendor,
		ProjectDir:   p.dir,
		Notify:       true,
		Policy:       resolver.DefaultPolicy(),
		Handoff:      JSONHandoff{VendorDir: p.vendor},
	}
}

func rootManifest(require map[string]string) *manifest.Manifest {
	return &manifest.Manifest{Name: "acme/app", Require: require}
}
