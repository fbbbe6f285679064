// SPDX-License-Identifier: MPL-2.0

package downloader

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/pakt/pakt/internal/process"
	"github.com/pakt/pakt/pkg/pkgmeta"
)

// svnRevision extracts the revision from references such as "trunk/@1234".
var svnRevision = regexp.MustCompile(`@(\d+)$`)

// driver runs the commands of one version control system.
type driver interface {
	checkout(ctx context.Context, r process.Runner, url, ref, path string) error
	switchTo(ctx context.Context, r process.Runner, url, ref, path string) error
	status(ctx context.Context, r process.Runner, path string) (string, error)
	log(ctx context.Context, r process.Runner, url, from, to, path string) (string, error)
	// displayRef shortens a reference for progress output.
	displayRef(ref string) string
}

type (
	gitDriver struct{}
	hgDriver  struct{}
	svnDriver struct{}
)

func driverFor(t pkgmeta.SourceType) (driver, error) {
	switch t {
	case pkgmeta.SourceGit:
		return gitDriver{}, nil
	case pkgmeta.SourceHg:
		return hgDriver{}, nil
	case pkgmeta.SourceSvn:
		return svnDriver{}, nil
	default:
		return nil, fmt.Errorf("%w: source type %q", ErrUnsupportedType, t)
	}
}

// sourceDriver returns the driver for pkg's source after checking that its
// url and reference cannot be read as command options.
func sourceDriver(pkg *pkgmeta.Package) (driver, error) {
	drv, err := driverFor(pkg.Source.Type)
	if err != nil {
		return nil, err
	}
	for _, f := range []struct{ name, value string }{
		{"url", pkg.Source.URL},
		{"reference", pkg.Source.Reference},
	} {
		if strings.HasPrefix(f.value, "-") {
			return nil, &UnsafeArgumentError{Package: pkg.PrettyName, Field: f.name, Value: f.value}
		}
	}
	return drv, nil
}

// runAll runs each argv in dir, stopping at the first failure.
func runAll(ctx context.Context, r process.Runner, dir string, cmds ...[]string) error {
	for _, argv := range cmds {
		if _, err := r.Run(ctx, dir, argv[0], argv[1:]...); err != nil {
			return err
		}
	}
	return nil
}

func (gitDriver) checkout(ctx context.Context, r process.Runner, url, ref, path string) error {
	if err := runAll(ctx, r, "", []string{"git", "clone", "--no-checkout", "--", url, path}); err != nil {
		return err
	}
	return runAll(ctx, r, path,
		[]string{"git", "checkout", ref, "--"},
		[]string{"git", "reset", "--hard", ref},
	)
}

func (gitDriver) switchTo(ctx context.Context, r process.Runner, url, ref, path string) error {
	return runAll(ctx, r, path,
		[]string{"git", "remote", "set-url", "origin", url},
		[]string{"git", "fetch", "origin"},
		[]string{"git", "fetch", "--tags", "origin"},
		[]string{"git", "checkout", ref, "--"},
		[]string{"git", "reset", "--hard", ref},
	)
}

func (gitDriver) status(ctx context.Context, r process.Runner, path string) (string, error) {
	out, err := r.Run(ctx, path, "git", "status", "--porcelain", "--untracked-files=no")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Stdout), nil
}

func (gitDriver) log(ctx context.Context, r process.Runner, _, from, to, path string) (string, error) {
	out, err := r.Run(ctx, path, "git", "log", from+".."+to, "--pretty=format:%h - %an: %s")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Stdout), nil
}

func (gitDriver) displayRef(ref string) string { return shortRef(ref) }

func (hgDriver) checkout(ctx context.Context, r process.Runner, url, ref, path string) error {
	if err := runAll(ctx, r, "", []string{"hg", "clone", "--", url, path}); err != nil {
		return err
	}
	return runAll(ctx, r, path, []string{"hg", "up", "-r", ref})
}

func (hgDriver) switchTo(ctx context.Context, r process.Runner, url, ref, path string) error {
	return runAll(ctx, r, path,
		[]string{"hg", "pull", "--", url},
		[]string{"hg", "up", "-r", ref},
	)
}

func (hgDriver) status(ctx context.Context, r process.Runner, path string) (string, error) {
	out, err := r.Run(ctx, path, "hg", "st")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Stdout), nil
}

func (hgDriver) log(ctx context.Context, r process.Runner, _, from, to, path string) (string, error) {
	out, err := r.Run(ctx, path, "hg", "log", "-r", from+":"+to, "--style", "compact")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Stdout), nil
}

func (hgDriver) displayRef(ref string) string { return shortRef(ref) }

func (svnDriver) checkout(ctx context.Context, r process.Runner, url, ref, path string) error {
	return runAll(ctx, r, "", []string{"svn", "checkout", "--", svnTarget(url, ref), path})
}

func (svnDriver) switchTo(ctx context.Context, r process.Runner, url, ref, path string) error {
	return runAll(ctx, r, path, []string{"svn", "switch", "--", svnTarget(url, ref)})
}

// status ignores lines describing svn:externals, which are not local edits.
func (svnDriver) status(ctx context.Context, r process.Runner, path string) (string, error) {
	out, err := r.Run(ctx, path, "svn", "status", "--ignore-externals")
	if err != nil {
		return "", err
	}
	var changes []string
	for _, line := range strings.Split(out.Stdout, "\n") {
		trimmed := strings.TrimLeft(line, " ")
		if trimmed == "" || strings.HasPrefix(trimmed, "X") || strings.HasPrefix(trimmed, "Performing status on external") {
			continue
		}
		changes = append(changes, line)
	}
	return strings.Join(changes, "\n"), nil
}

// log needs revision numbers; references without an "@N" suffix yield no
// log.
func (svnDriver) log(ctx context.Context, r process.Runner, url, from, to, path string) (string, error) {
	fm := svnRevision.FindStringSubmatch(from)
	tm := svnRevision.FindStringSubmatch(to)
	if fm == nil || tm == nil {
		return "", nil
	}
	out, err := r.Run(ctx, path, "svn", "log", "-r", fm[1]+":"+tm[1], "--incremental", url)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Stdout), nil
}

func (svnDriver) displayRef(ref string) string { return ref }

func svnTarget(url, ref string) string {
	return strings.TrimRight(url, "/") + "/" + strings.TrimLeft(ref, "/")
}
