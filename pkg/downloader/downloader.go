// SPDX-License-Identifier: MPL-2.0

package downloader

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pakt/pakt/pkg/pkgmeta"
)

// Downloader variants.
const (
	KindArchive Kind = iota + 1
	KindVCS
)

type (
	// Kind tags the closed set of downloader variants.
	Kind int

	// Downloader materializes one package at a path.
	Downloader interface {
		Kind() Kind
		Install(ctx context.Context, pkg *pkgmeta.Package, path string) error
		Update(ctx context.Context, initial, target *pkgmeta.Package, path string) error
		Remove(ctx context.Context, pkg *pkgmeta.Package, path string) error
		// LocalChanges returns the status text of local modifications, or
		// "" when the working copy is clean.
		LocalChanges(ctx context.Context, pkg *pkgmeta.Package, path string) (string, error)
	}
)

// String returns the variant name.
func (k Kind) String() string {
	switch k {
	case KindArchive:
		return "archive"
	case KindVCS:
		return "vcs"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// FormatVersion renders a package version for progress output. Dev versions
// installed from git or hg carry the first six characters of the source
// reference.
func FormatVersion(pkg *pkgmeta.Package) string {
	pretty := pkg.PrettyVersion()
	if !pkg.Version.IsDev() || pkg.Source == nil {
		return pretty
	}
	if pkg.Source.Type != pkgmeta.SourceGit && pkg.Source.Type != pkgmeta.SourceHg {
		return pretty
	}
	ref := pkg.Source.Reference
	if ref == "" || ref == pretty {
		return pretty
	}
	return pretty + " " + shortRef(ref)
}

func shortRef(ref string) string {
	if len(ref) > 6 {
		return ref[:6]
	}
	return ref
}

func progress(w io.Writer, format string, args ...any) {
	if w == nil {
		return
	}
	_, _ = fmt.Fprintf(w, format+"\n", args...)
}

// indent prefixes every line of text with prefix.
func indent(text, prefix string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
