// SPDX-License-Identifier: MPL-2.0

package downloader

import (
	"context"
	"io"

	"github.com/charmbracelet/log"

	"github.com/pakt/pakt/pkg/pkgmeta"
)

type (
	// ManagerOptions configures a Manager.
	ManagerOptions struct {
		// PreferSource installs from VCS whenever a package has a source.
		PreferSource bool
		VCS          *VcsDownloader
		Archive      *ArchiveDownloader
		Logger       *log.Logger
	}

	// Manager picks the downloader for each package and records how it
	// was installed.
	Manager struct {
		preferSource bool
		vcs          *VcsDownloader
		archive      *ArchiveDownloader
		logger       *log.Logger
	}
)

// NewManager returns a Manager. Missing downloaders get defaults.
func NewManager(opts ManagerOptions) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	vcs := opts.VCS
	if vcs == nil {
		vcs = NewVcsDownloader(VcsOptions{Logger: logger})
	}
	archive := opts.Archive
	if archive == nil {
		archive = NewArchiveDownloader(ArchiveOptions{Logger: logger})
	}
	return &Manager{preferSource: opts.PreferSource, vcs: vcs, archive: archive, logger: logger}
}

// PreferSource reports whether VCS sources win over dists.
func (m *Manager) PreferSource() bool { return m.preferSource }

// SetPreferSource toggles source preference.
func (m *Manager) SetPreferSource(v bool) { m.preferSource = v }

// Source returns the installation source a fresh install of pkg would use.
func (m *Manager) Source(pkg *pkgmeta.Package) (pkgmeta.InstallationSource, error) {
	hasSource := pkg.Source != nil && pkg.Source.Type != pkgmeta.SourceNone && pkg.Source.URL != ""
	hasDist := pkg.Dist != nil && pkg.Dist.URL != ""
	switch {
	case hasSource && (m.preferSource || !hasDist):
		return pkgmeta.InstalledFromSource, nil
	case hasDist:
		return pkgmeta.InstalledFromDist, nil
	default:
		return "", &NoInstallationSourceError{Package: pkg.PrettyName}
	}
}

// DownloaderFor returns the downloader for an installed package, using its
// recorded installation source when present.
func (m *Manager) DownloaderFor(pkg *pkgmeta.Package) (Downloader, error) {
	src := pkg.InstallationSource
	if src == "" {
		var err error
		if src, err = m.Source(pkg); err != nil {
			return nil, err
		}
	}
	if src == pkgmeta.InstalledFromSource {
		return m.vcs, nil
	}
	return m.archive, nil
}

// Install materializes pkg at path and returns it with its installation
// source recorded.
func (m *Manager) Install(ctx context.Context, pkg *pkgmeta.Package, path string) (*pkgmeta.Package, error) {
	if skipped(pkg) {
		return pkg, nil
	}
	src, err := m.Source(pkg)
	if err != nil {
		return nil, err
	}
	installed := pkg.WithInstallationSource(src)
	d, err := m.DownloaderFor(installed)
	if err != nil {
		return nil, err
	}
	m.logger.Debug("installing", "package", pkg.Name, "via", d.Kind(), "path", path)
	if err := d.Install(ctx, installed, path); err != nil {
		return nil, err
	}
	return installed, nil
}

// Update moves the package at path from initial to target. Switching
// between source and dist, or between source types, reinstalls.
func (m *Manager) Update(ctx context.Context, initial, target *pkgmeta.Package, path string) (*pkgmeta.Package, error) {
	if skipped(target) {
		if !skipped(initial) {
			if err := m.Remove(ctx, initial, path); err != nil {
				return nil, err
			}
		}
		return target, nil
	}
	if skipped(initial) {
		return m.Install(ctx, target, path)
	}

	src, err := m.Source(target)
	if err != nil {
		return nil, err
	}
	if initial.InstallationSource == "" {
		initial = initial.WithInstallationSource(src)
	}
	updated := target.WithInstallationSource(src)

	if initial.InstallationSource != src || sourceTypeChanged(initial, target) {
		m.logger.Debug("reinstalling", "package", target.Name, "from", initial.InstallationSource, "to", src)
		if err := m.Remove(ctx, initial, path); err != nil {
			return nil, err
		}
		return m.Install(ctx, target, path)
	}

	d, err := m.DownloaderFor(updated)
	if err != nil {
		return nil, err
	}
	if err := d.Update(ctx, initial, updated, path); err != nil {
		return nil, err
	}
	return updated, nil
}

// Remove deletes the package at path.
func (m *Manager) Remove(ctx context.Context, pkg *pkgmeta.Package, path string) error {
	if skipped(pkg) {
		return nil
	}
	d, err := m.DownloaderFor(pkg)
	if err != nil {
		return err
	}
	return d.Remove(ctx, pkg, path)
}

// LocalChanges reports local modifications of an installed package.
func (m *Manager) LocalChanges(ctx context.Context, pkg *pkgmeta.Package, path string) (string, error) {
	if skipped(pkg) {
		return "", nil
	}
	d, err := m.DownloaderFor(pkg)
	if err != nil {
		return "", err
	}
	return d.LocalChanges(ctx, pkg, path)
}

// skipped reports packages that have nothing to put on disk.
func skipped(pkg *pkgmeta.Package) bool {
	return pkg.IsMetapackage() || pkg.IsPlatform()
}

func sourceTypeChanged(initial, target *pkgmeta.Package) bool {
	if initial.InstallationSource != pkgmeta.InstalledFromSource {
		return false
	}
	if initial.Source == nil || target.Source == nil {
		return initial.Source != target.Source
	}
	return initial.Source.Type != target.Source.Type
}
