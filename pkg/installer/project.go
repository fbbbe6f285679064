// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/pakt/pakt/internal/fsutil"
	"github.com/pakt/pakt/pkg/downloader"
	"github.com/pakt/pakt/pkg/manifest"
	"github.com/pakt/pakt/pkg/pkgmeta"
	"github.com/pakt/pakt/pkg/repository"
	"github.com/pakt/pakt/pkg/resolver"
	"github.com/pakt/pakt/pkg/version"
)

type (
	// ProjectRequest describes a create-project run.
	ProjectRequest struct {
		// Package is the name of the project package.
		Package string
		// Version is an optional constraint; empty means any version.
		Version string
		// Directory defaults to the last segment of Package under the
		// current directory.
		Directory string

		Repositories     repository.Repository
		Downloads        *downloader.Manager
		MinimumStability version.Stability
		// Stability ranks stabilities against MinimumStability; the zero
		// value is the default order.
		Stability version.StabilityOrder
		Notify    bool

		// Install runs the follow-up install inside the new project. It is
		// called with the project directory and its manifest; nil skips the
		// install.
		Install func(ctx context.Context, dir string, m *manifest.Manifest) error

		Out    io.Writer
		Logger *log.Logger
	}

	// ProjectResult describes a created project.
	ProjectResult struct {
		Package   *pkgmeta.Package
		Directory string
		Manifest  *manifest.Manifest
	}
)

// CreateProject installs a package as the root of a new project and then
// installs that project's own requirements.
func CreateProject(ctx context.Context, req ProjectRequest) (*ProjectResult, error) {
	logger := req.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	name := pkgmeta.NormalizeName(req.Package)
	var c version.Constraint
	if req.Version != "" {
		var err error
		if c, err = version.ParseConstraints(req.Version); err != nil {
			return nil, err
		}
	}

	dir := req.Directory
	if dir == "" {
		parts := strings.Split(name, "/")
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(cwd, parts[len(parts)-1])
	}
	if fsutil.Exists(dir) {
		empty, err := fsutil.IsDirEmpty(dir)
		if err != nil {
			return nil, err
		}
		if !empty {
			return nil, fmt.Errorf("%w: %s", ErrDirectoryNotEmpty, dir)
		}
	}

	minimum := req.MinimumStability
	if s, ok := manifest.ConstraintStability(req.Version); ok && s > minimum {
		minimum = s
	}
	pkg, origin, err := pickProjectPackage(ctx, req.Repositories, name, c, req.Stability, minimum)
	if err != nil {
		return nil, err
	}
	if pkg == nil {
		return nil, &PackageNotFoundError{Package: req.Package, Version: req.Version}
	}

	progress(req.Out, "Installing %s (%s)", pkg.Name, downloader.FormatVersion(pkg))
	if strings.HasPrefix(pkg.PrettyVersion(), "dev-") && pkg.Source != nil &&
		(pkg.Source.Type == pkgmeta.SourceGit || pkg.Source.Type == pkgmeta.SourceHg) {
		pkg = pkg.WithSourceReference(strings.TrimPrefix(pkg.PrettyVersion(), "dev-"))
	}

	dm := req.Downloads
	if dm == nil {
		dm = downloader.NewManager(downloader.ManagerOptions{})
	}
	installed, err := dm.Install(ctx, pkg, dir)
	if err != nil {
		return nil, err
	}
	if n, ok := origin.(repository.Notifier); ok && req.Notify {
		if err := n.NotifyInstall(ctx, installed, newRunID()); err != nil {
			logger.Warn("install notification failed", "package", installed.Name, "repository", origin.Name(), "err", err)
		}
	}
	progress(req.Out, "Created project in %s", dir)

	res := &ProjectResult{Package: installed, Directory: dir}
	m, err := manifest.LoadDir(dir)
	if err != nil {
		return res, err
	}
	res.Manifest = m
	if req.Install != nil {
		if err := req.Install(ctx, dir, m); err != nil {
			return res, err
		}
	}
	return res, nil
}

// pickProjectPackage returns the highest version of name allowed by
// minimum, with the repository that provided it.
func pickProjectPackage(ctx context.Context, repo repository.Repository, name string, c version.Constraint, order version.StabilityOrder, minimum version.Stability) (*pkgmeta.Package, repository.Repository, error) {
	if src, ok := repo.(resolver.CandidateSource); ok {
		cands, err := src.FindCandidates(ctx, name, c)
		if err != nil {
			return nil, nil, err
		}
		var best repository.Candidate
		for _, cand := range cands {
			if !order.Allows(minimum, cand.Package.Version.Stability()) {
				continue
			}
			if best.Package == nil || version.Compare(cand.Package.Version, best.Package.Version) > 0 {
				best = cand
			}
		}
		return best.Package, best.Origin, nil
	}

	pkgs, err := repo.FindPackages(ctx, name, c)
	if err != nil {
		return nil, nil, err
	}
	var best *pkgmeta.Package
	for _, p := range pkgs {
		if order.Allows(minimum, p.Version.Stability()) && (best == nil || version.Compare(p.Version, best.Version) > 0) {
			best = p
		}
	}
	return best, repo, nil
}
