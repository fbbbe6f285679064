// SPDX-License-Identifier: MPL-2.0

package downloader

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"crypto/sha1" //nolint:gosec // dist shasums are sha1 digests
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ulikunitz/xz"

	"github.com/pakt/pakt/internal/fsutil"
	"github.com/pakt/pakt/pkg/pkgmeta"
)

// Dist archive types.
const (
	DistZip   = "zip"
	DistTar   = "tar"
	DistTarGz = "tar.gz"
	DistTarXz = "tar.xz"
)

type (
	// ArchiveOptions configures an ArchiveDownloader.
	ArchiveOptions struct {
		// Client fetches http(s) dists; defaults to a client with Timeout.
		Client  *http.Client
		Timeout time.Duration
		// Out receives progress lines; nil discards them.
		Out    io.Writer
		Logger *log.Logger
	}

	// ArchiveDownloader installs packages from their dist archive.
	ArchiveDownloader struct {
		client *http.Client
		out    io.Writer
		logger *log.Logger
	}
)

// NewArchiveDownloader returns an archive downloader.
func NewArchiveDownloader(opts ArchiveOptions) *ArchiveDownloader {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Minute
		}
		client = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &ArchiveDownloader{client: client, out: opts.Out, logger: logger}
}

// Kind implements Downloader.
func (*ArchiveDownloader) Kind() Kind { return KindArchive }

// Install implements Downloader. The archive is verified and unpacked into
// a sibling temporary directory, then moved into place.
func (d *ArchiveDownloader) Install(ctx context.Context, pkg *pkgmeta.Package, path string) error {
	if pkg.Dist == nil || pkg.Dist.URL == "" {
		return &NoInstallationSourceError{Package: pkg.PrettyName}
	}
	progress(d.out, "  - Installing %s (%s)", pkg.Name, FormatVersion(pkg))
	if err := d.install(ctx, pkg.Dist, path); err != nil {
		return fmt.Errorf("install %s: %w", pkg.Name, err)
	}
	progress(d.out, "")
	return nil
}

// Update implements Downloader as a removal followed by a fresh install.
func (d *ArchiveDownloader) Update(ctx context.Context, initial, target *pkgmeta.Package, path string) error {
	if target.Dist == nil || target.Dist.URL == "" {
		return &NoInstallationSourceError{Package: target.PrettyName}
	}
	progress(d.out, "  - Updating %s (%s => %s)", target.Name, FormatVersion(initial), FormatVersion(target))
	if err := removeDir(path); err != nil {
		return err
	}
	if err := d.install(ctx, target.Dist, path); err != nil {
		return fmt.Errorf("update %s: %w", target.Name, err)
	}
	progress(d.out, "")
	return nil
}

// Remove implements Downloader.
func (d *ArchiveDownloader) Remove(_ context.Context, pkg *pkgmeta.Package, path string) error {
	progress(d.out, "  - Removing %s (%s)", pkg.Name, pkg.PrettyVersion())
	return removeDir(path)
}

// LocalChanges implements Downloader. Unpacked archives are not tracked.
func (*ArchiveDownloader) LocalChanges(context.Context, *pkgmeta.Package, string) (string, error) {
	return "", nil
}

func (d *ArchiveDownloader) install(ctx context.Context, dist *pkgmeta.Dist, path string) error {
	parent := filepath.Dir(path)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return err
	}

	archive, err := os.CreateTemp(parent, ".pakt-dist-*")
	if err != nil {
		return err
	}
	defer func() {
		_ = archive.Close()
		_ = os.Remove(archive.Name())
	}()

	if err := d.fetch(ctx, dist, archive); err != nil {
		return err
	}

	staging, err := os.MkdirTemp(parent, ".pakt-extract-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.RemoveAll(staging) }()

	kind := distType(dist)
	d.logger.Debug("extracting dist", "url", dist.URL, "type", kind, "into", path)
	if err := extract(kind, archive, staging); err != nil {
		return err
	}

	root, err := contentRoot(staging)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(path); err != nil {
		return &RemovalFailedError{Path: path, Err: err}
	}
	return os.Rename(root, path)
}

// fetch copies the dist into dst and verifies its shasum.
func (d *ArchiveDownloader) fetch(ctx context.Context, dist *pkgmeta.Dist, dst io.Writer) error {
	src, err := d.open(ctx, dist.URL)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	hash := sha1.New() //nolint:gosec // see import
	if _, err := io.Copy(io.MultiWriter(dst, hash), src); err != nil {
		return fmt.Errorf("download %s: %w", dist.URL, err)
	}
	if dist.Shasum != "" {
		if got := hex.EncodeToString(hash.Sum(nil)); !strings.EqualFold(got, dist.Shasum) {
			return &ChecksumMismatchError{URL: dist.URL, Expected: dist.Shasum, Actual: got}
		}
	}
	return nil
}

func (d *ArchiveDownloader) open(ctx context.Context, raw string) (io.ReadCloser, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Plain paths, including Windows drive letters.
		return os.Open(raw)
	}
	switch u.Scheme {
	case "file":
		return os.Open(filepath.FromSlash(u.Path))
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, http.NoBody)
		if err != nil {
			return nil, err
		}
		resp, err := d.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("download %s: %w", raw, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("download %s: HTTP %d", raw, resp.StatusCode)
		}
		return resp.Body, nil
	default:
		return nil, fmt.Errorf("%w: dist URL scheme %q", ErrUnsupportedType, u.Scheme)
	}
}

// distType returns the archive type, inferring it from the URL when the
// dist does not say.
func distType(dist *pkgmeta.Dist) string {
	t := strings.ToLower(dist.Type)
	switch t {
	case "tgz", "gzip":
		return DistTarGz
	case "xz", "txz":
		return DistTarXz
	case "":
	default:
		return t
	}
	u := strings.ToLower(dist.URL)
	switch {
	case strings.HasSuffix(u, ".tar.gz"), strings.HasSuffix(u, ".tgz"):
		return DistTarGz
	case strings.HasSuffix(u, ".tar.xz"), strings.HasSuffix(u, ".txz"):
		return DistTarXz
	case strings.HasSuffix(u, ".tar"):
		return DistTar
	default:
		return DistZip
	}
}

func extract(kind string, archive *os.File, dst string) error {
	if _, err := archive.Seek(0, io.SeekStart); err != nil {
		return err
	}
	switch kind {
	case DistZip:
		info, err := archive.Stat()
		if err != nil {
			return err
		}
		return extractZip(archive, info.Size(), dst)
	case DistTar:
		return extractTar(archive, dst)
	case DistTarGz:
		gzr, err := gzip.NewReader(archive)
		if err != nil {
			return fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer func() { _ = gzr.Close() }()
		return extractTar(gzr, dst)
	case DistTarXz:
		xzr, err := xz.NewReader(archive)
		if err != nil {
			return fmt.Errorf("failed to create xz reader: %w", err)
		}
		return extractTar(xzr, dst)
	default:
		return fmt.Errorf("%w: dist type %q", ErrUnsupportedType, kind)
	}
}

func extractZip(r io.ReaderAt, size int64, dst string) error {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return fmt.Errorf("failed to read zip archive: %w", err)
	}
	for _, f := range zr.File {
		target, err := entryPath(dst, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", f.Name, err)
		}
		err = writeFile(target, rc, f.Mode())
		_ = rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func extractTar(r io.Reader, dst string) error {
	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read tar header: %w", err)
		}
		if header.Typeflag == tar.TypeXGlobalHeader {
			continue
		}

		target, err := entryPath(dst, header.Name)
		if err != nil {
			return err
		}
		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, os.FileMode(header.Mode).Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			rel := filepath.Join(filepath.Dir(filepath.FromSlash(header.Name)), filepath.FromSlash(header.Linkname))
			if filepath.IsAbs(header.Linkname) {
				return fmt.Errorf("%w: symlink %s -> %s", fsutil.ErrPathEscapes, header.Name, header.Linkname)
			}
			if _, err := fsutil.SafeJoin(dst, filepath.ToSlash(rel)); err != nil {
				return fmt.Errorf("symlink %s: %w", header.Name, err)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := os.Symlink(header.Linkname, target); err != nil {
				return err
			}
		}
	}
}

// entryPath returns where an archive entry is extracted. Entries that leave
// dst, or that would be written through a symlink created by an earlier
// entry, fail with fsutil.ErrPathEscapes.
func entryPath(dst, name string) (string, error) {
	target, err := fsutil.SafeJoin(dst, name)
	if err != nil {
		return "", err
	}
	if err := fsutil.CheckNoSymlinks(dst, target); err != nil {
		return "", fmt.Errorf("entry %s: %w", name, err)
	}
	return target, nil
}

func writeFile(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if mode&0o600 == 0 {
		mode |= 0o644
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm())
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write file contents: %w", err)
	}
	return f.Close()
}

// contentRoot returns the single top-level directory of an extracted
// archive, or dir itself when the archive has several top-level entries.
func contentRoot(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(dir, entries[0].Name()), nil
	}
	return dir, nil
}
