// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/pakt/pakt/pkg/downloader"
	"github.com/pakt/pakt/pkg/manifest"
	"github.com/pakt/pakt/pkg/pkgmeta"
	"github.com/pakt/pakt/pkg/repository"
	"github.com/pakt/pakt/pkg/resolver"
	"github.com/pakt/pakt/pkg/version"
)

type (
	// PathResolver maps a package to its install directory. Custom
	// installers register one per package type.
	PathResolver func(pkg *pkgmeta.Package) string

	// Options configures an Installer.
	Options struct {
		// Repositories provides candidates, usually a CompositeRepository.
		Repositories resolver.CandidateSource
		// Installed is the installed-package record. It is rewritten after
		// every successful operation.
		Installed repository.Writable
		Downloads *downloader.Manager
		// VendorDir is where packages install, as <VendorDir>/<name>.
		VendorDir string
		// ProjectDir is the working directory for scripts.
		ProjectDir string

		DryRun             bool
		NoCustomInstallers bool
		ContinueOnError    bool
		// Notify reports installs to repositories that accept notifications.
		Notify bool

		Policy           resolver.Policy
		Handoff          AutoloadHandoff
		Hooks            Dispatcher
		CustomInstallers map[string]PathResolver

		Logger *log.Logger
		// Out receives progress lines; nil discards them.
		Out io.Writer
	}

	// Installer executes install and update runs for one project.
	Installer struct {
		opts   Options
		logger *log.Logger
	}

	// Request describes one run.
	Request struct {
		Manifest         *manifest.Manifest
		DevMode          bool
		MinimumStability version.Stability
		PreferStable     bool
		// Update lets installed packages move. With an empty
		// UpdateAllowList every package may change; otherwise only the
		// listed ones.
		Update          bool
		UpdateAllowList []string
	}

	// Report summarizes a run.
	Report struct {
		RunID      string
		DryRun     bool
		Operations []Operation
		Failures   []*OperationError
		// Result is the resolved set the operations were planned from.
		Result *resolver.Result
	}
)

// New returns an Installer.
func New(opts Options) *Installer {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if opts.Downloads == nil {
		opts.Downloads = downloader.NewManager(downloader.ManagerOptions{Logger: logger})
	}
	if opts.VendorDir == "" {
		opts.VendorDir = "vendor"
	}
	return &Installer{opts: opts, logger: logger}
}

// Succeeded reports whether no operation failed.
func (r *Report) Succeeded() bool { return len(r.Failures) == 0 }

// Run resolves req, plans the operations against the installed record and
// executes them in order.
//
// A resolution failure returns before anything on disk changes. An
// operation failure halts the run unless ContinueOnError is set; the
// returned Report lists what was planned and what failed either way.
func (in *Installer) Run(ctx context.Context, req Request) (*Report, error) {
	if req.Manifest == nil {
		return nil, errors.New("installer: request has no manifest")
	}
	root, err := req.Manifest.RootLinks(req.DevMode)
	if err != nil {
		return nil, err
	}
	allow := make([]string, 0, len(req.UpdateAllowList))
	for _, name := range req.UpdateAllowList {
		allow = append(allow, pkgmeta.NormalizeName(name))
	}

	runID := newRunID()
	logger := in.logger.With("run", runID)
	report := &Report{RunID: runID, DryRun: in.opts.DryRun}

	res, err := resolver.New(in.opts.Repositories, resolver.Options{Policy: in.opts.Policy, Logger: logger}).Resolve(ctx, resolver.Request{
		Root:             root.Links,
		DevMode:          req.DevMode,
		MinimumStability: req.MinimumStability,
		StabilityFlags:   root.StabilityFlags,
		PreferStable:     req.PreferStable,
		Installed:        in.opts.Installed,
		UpdateAll:        req.Update && len(allow) == 0,
		UpdateAllowList:  allow,
	})
	if err != nil {
		return report, err
	}
	report.Result = res

	var installed []*pkgmeta.Package
	if in.opts.Installed != nil {
		installed = in.opts.Installed.Packages()
	}
	report.Operations = Plan(installed, res, in.sourceOf)
	logger.Debug("planned", "operations", len(report.Operations), "dry_run", in.opts.DryRun)

	if len(report.Operations) == 0 {
		progress(in.opts.Out, "Nothing to install or update")
	}
	if in.opts.NoCustomInstallers && len(in.opts.CustomInstallers) > 0 {
		progress(in.opts.Out, "Custom installers have been disabled.")
	}

	for _, op := range report.Operations {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if in.opts.DryRun {
			progress(in.opts.Out, "  - %s", op)
			continue
		}
		cand, _ := res.Candidate(op.Package().Name)
		if err := in.execute(ctx, op, cand.Origin, runID); err != nil {
			var persist *persistError
			if errors.As(err, &persist) {
				return report, persist.err
			}
			opErr := &OperationError{Operation: op, Err: err}
			report.Failures = append(report.Failures, opErr)
			logger.Error("operation failed", "op", op.Kind(), "package", op.Package().Name, "err", err)
			if !in.opts.ContinueOnError {
				return report, opErr
			}
		}
	}

	if len(report.Failures) > 0 {
		errs := make([]error, 0, len(report.Failures))
		for _, f := range report.Failures {
			errs = append(errs, f)
		}
		return report, errors.Join(errs...)
	}

	if !in.opts.DryRun && in.opts.Handoff != nil {
		if err := in.opts.Handoff.Dump(ctx, in.installedPaths()); err != nil {
			return report, fmt.Errorf("autoload handoff: %w", err)
		}
	}
	return report, nil
}

// Policy returns the resolution policy the installer was built with.
func (in *Installer) Policy() resolver.Policy { return in.opts.Policy }

// InstallPath returns the directory pkg installs into.
func (in *Installer) InstallPath(pkg *pkgmeta.Package) string {
	if !in.opts.NoCustomInstallers {
		if resolve, ok := in.opts.CustomInstallers[pkg.Type]; ok {
			if p := resolve(pkg); p != "" {
				return p
			}
		}
	}
	return filepath.Join(in.opts.VendorDir, filepath.FromSlash(pkg.Name))
}

// persistError marks a failure to write the installed record, which always
// halts the run.
type persistError struct{ err error }

func (e *persistError) Error() string { return e.err.Error() }

func (in *Installer) execute(ctx context.Context, op Operation, origin repository.Repository, runID string) error {
	ev := Event{Operation: op, RunID: runID, Dir: in.opts.ProjectDir}
	if in.opts.Hooks != nil {
		ev.Name = preEvent(op.Kind())
		if err := in.opts.Hooks.Dispatch(ctx, ev); err != nil {
			return err
		}
	}

	dm := in.opts.Downloads
	switch o := op.(type) {
	case InstallOperation:
		pkg, err := dm.Install(ctx, o.Target, in.InstallPath(o.Target))
		if err != nil {
			return err
		}
		if err := in.record(ctx, nil, pkg); err != nil {
			return err
		}
	case UpdateOperation:
		initialPath, targetPath := in.InstallPath(o.Initial), in.InstallPath(o.Target)
		var (
			pkg *pkgmeta.Package
			err error
		)
		if initialPath != targetPath {
			if err = dm.Remove(ctx, o.Initial, initialPath); err == nil {
				pkg, err = dm.Install(ctx, o.Target, targetPath)
			}
		} else {
			pkg, err = dm.Update(ctx, o.Initial, o.Target, targetPath)
		}
		if err != nil {
			return err
		}
		if err := in.record(ctx, o.Initial, pkg); err != nil {
			return err
		}
	case RemoveOperation:
		if err := dm.Remove(ctx, o.Initial, in.InstallPath(o.Initial)); err != nil {
			return err
		}
		if err := in.record(ctx, o.Initial, nil); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown operation %T", op)
	}

	if in.opts.Hooks != nil {
		ev.Name = postEvent(op.Kind())
		if err := in.opts.Hooks.Dispatch(ctx, ev); err != nil {
			return err
		}
	}
	if op.Kind() != OpRemove {
		in.notify(ctx, origin, op.Package(), runID)
	}
	return nil
}

// record applies a completed operation to the installed record and writes
// it out.
func (in *Installer) record(ctx context.Context, removed, added *pkgmeta.Package) error {
	if in.opts.Installed == nil {
		return nil
	}
	if removed != nil {
		in.opts.Installed.RemovePackage(removed)
	}
	if added != nil {
		in.opts.Installed.AddPackage(added)
	}
	if err := in.opts.Installed.Write(ctx); err != nil {
		return &persistError{err: fmt.Errorf("write installed packages: %w", err)}
	}
	return nil
}

func (in *Installer) notify(ctx context.Context, origin repository.Repository, pkg *pkgmeta.Package, runID string) {
	if !in.opts.Notify {
		return
	}
	n, ok := origin.(repository.Notifier)
	if !ok {
		return
	}
	if err := n.NotifyInstall(ctx, pkg, runID); err != nil {
		in.logger.Warn("install notification failed", "package", pkg.Name, "repository", origin.Name(), "err", err)
	}
}

func (in *Installer) sourceOf(pkg *pkgmeta.Package) pkgmeta.InstallationSource {
	src, err := in.opts.Downloads.Source(pkg)
	if err != nil {
		return ""
	}
	return src
}

func (in *Installer) installedPaths() []InstalledPackage {
	if in.opts.Installed == nil {
		return nil
	}
	var out []InstalledPackage
	for _, p := range in.opts.Installed.Packages() {
		if p.IsPlatform() || p.IsMetapackage() {
			continue
		}
		out = append(out, InstalledPackage{Package: p, Path: in.InstallPath(p)})
	}
	slices.SortFunc(out, func(a, b InstalledPackage) int { return strings.Compare(a.Package.Name, b.Package.Name) })
	return out
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func progress(w io.Writer, format string, args ...any) {
	if w == nil {
		return
	}
	_, _ = fmt.Fprintf(w, format+"\n", args...)
}
