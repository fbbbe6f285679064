// SPDX-License-Identifier: MPL-2.0

package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/pakt/pakt/internal/fsutil"
	"github.com/pakt/pakt/internal/process"
	"github.com/pakt/pakt/pkg/pkgmeta"
)

// Change log directions.
const (
	Pull Direction = iota
	Rollback
)

type (
	// Direction tells whether an update moved forward or back in history.
	Direction int

	// ChangeLog is the commit log between two references of an update.
	ChangeLog struct {
		Direction Direction
		Text      string
	}

	// VcsOptions configures a VcsDownloader.
	VcsOptions struct {
		Runner process.Runner
		// Out receives progress lines; nil discards them.
		Out io.Writer
		// Verbose prints the change log after each update.
		Verbose bool
		Logger  *log.Logger
	}

	// VcsDownloader installs packages from their source reference.
	VcsDownloader struct {
		runner  process.Runner
		out     io.Writer
		verbose bool
		logger  *log.Logger
	}
)

// String returns the progress header for the direction.
func (d Direction) String() string {
	if d == Rollback {
		return "Rolling back changes:"
	}
	return "Pulling in changes:"
}

// NewVcsDownloader returns a VCS downloader. A nil Runner executes real
// commands.
func NewVcsDownloader(opts VcsOptions) *VcsDownloader {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	runner := opts.Runner
	if runner == nil {
		runner = process.NewExecRunner(logger)
	}
	return &VcsDownloader{runner: runner, out: opts.Out, verbose: opts.Verbose, logger: logger}
}

// Kind implements Downloader.
func (*VcsDownloader) Kind() Kind { return KindVCS }

// Install implements Downloader. Any existing directory at path is replaced.
func (d *VcsDownloader) Install(ctx context.Context, pkg *pkgmeta.Package, path string) error {
	if pkg.SourceReference() == "" {
		return &MissingSourceReferenceError{Package: pkg.PrettyName}
	}
	drv, err := sourceDriver(pkg)
	if err != nil {
		return err
	}

	progress(d.out, "  - Installing %s (%s)", pkg.Name, FormatVersion(pkg))
	if err := os.RemoveAll(path); err != nil {
		return &RemovalFailedError{Path: path, Err: err}
	}
	if err := drv.checkout(ctx, d.runner, pkg.Source.URL, pkg.Source.Reference, path); err != nil {
		return fmt.Errorf("install %s: %w", pkg.Name, err)
	}
	progress(d.out, "")
	return nil
}

// Update implements Downloader. It refuses to touch a working copy with
// local changes.
func (d *VcsDownloader) Update(ctx context.Context, initial, target *pkgmeta.Package, path string) error {
	if target.SourceReference() == "" {
		return &MissingSourceReferenceError{Package: target.PrettyName}
	}
	drv, err := sourceDriver(target)
	if err != nil {
		return err
	}

	name := target.Name
	var from, to string
	if initial.PrettyVersion() == target.PrettyVersion() {
		from = drv.displayRef(initial.SourceReference())
		to = drv.displayRef(target.SourceReference())
		name += " " + initial.PrettyVersion()
	} else {
		from = FormatVersion(initial)
		to = FormatVersion(target)
	}
	progress(d.out, "  - Updating %s (%s => %s)", name, from, to)

	if err := d.enforceClean(ctx, initial, path); err != nil {
		return err
	}
	if err := drv.switchTo(ctx, d.runner, target.Source.URL, target.Source.Reference, path); err != nil {
		return fmt.Errorf("update %s: %w", target.Name, err)
	}

	if d.verbose {
		cl, err := d.ChangeLog(ctx, initial, target, path)
		if err != nil {
			d.logger.Warn("could not read change log", "package", target.Name, "err", err)
		} else if cl.Text != "" {
			progress(d.out, "    %s", cl.Direction)
			progress(d.out, "%s", indent(cl.Text, "      "))
		}
	}
	progress(d.out, "")
	return nil
}

// Remove implements Downloader. It refuses to delete a working copy with
// local changes.
func (d *VcsDownloader) Remove(ctx context.Context, pkg *pkgmeta.Package, path string) error {
	if err := d.enforceClean(ctx, pkg, path); err != nil {
		return err
	}
	progress(d.out, "  - Removing %s (%s)", pkg.Name, pkg.PrettyVersion())
	return removeDir(path)
}

// LocalChanges implements Downloader. A missing directory has no changes.
func (d *VcsDownloader) LocalChanges(ctx context.Context, pkg *pkgmeta.Package, path string) (string, error) {
	if !fsutil.Exists(path) {
		return "", nil
	}
	if pkg.Source == nil {
		return "", nil
	}
	drv, err := driverFor(pkg.Source.Type)
	if err != nil {
		return "", err
	}
	return drv.status(ctx, d.runner, path)
}

// ChangeLog returns the commits between the initial and target references.
// When the forward log is empty the reverse log is returned as a rollback.
func (d *VcsDownloader) ChangeLog(ctx context.Context, initial, target *pkgmeta.Package, path string) (ChangeLog, error) {
	if target.Source == nil {
		return ChangeLog{}, &MissingSourceReferenceError{Package: target.PrettyName}
	}
	drv, err := sourceDriver(target)
	if err != nil {
		return ChangeLog{}, err
	}
	from, to := initial.SourceReference(), target.SourceReference()
	if strings.HasPrefix(from, "-") {
		return ChangeLog{}, &UnsafeArgumentError{Package: initial.PrettyName, Field: "reference", Value: from}
	}

	forward, err := drv.log(ctx, d.runner, target.Source.URL, from, to, path)
	if err != nil {
		return ChangeLog{}, err
	}
	if strings.TrimSpace(forward) != "" {
		return ChangeLog{Direction: Pull, Text: forward}, nil
	}
	backward, err := drv.log(ctx, d.runner, target.Source.URL, to, from, path)
	if err != nil {
		return ChangeLog{}, err
	}
	if strings.TrimSpace(backward) != "" {
		return ChangeLog{Direction: Rollback, Text: backward}, nil
	}
	return ChangeLog{Direction: Pull}, nil
}

func (d *VcsDownloader) enforceClean(ctx context.Context, pkg *pkgmeta.Package, path string) error {
	changes, err := d.LocalChanges(ctx, pkg, path)
	if err != nil {
		return fmt.Errorf("check local changes in %s: %w", path, err)
	}
	if changes != "" {
		return &DirtyWorkingCopyError{Path: path, Changes: changes}
	}
	return nil
}

func removeDir(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return &RemovalFailedError{Path: path, Err: err}
	}
	if fsutil.Exists(path) {
		return &RemovalFailedError{Path: path, Err: errors.New("path still exists")}
	}
	return nil
}
