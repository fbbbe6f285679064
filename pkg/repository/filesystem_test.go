// SPDX-License-Identifier: MPL-2.0

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pakt/pakt/pkg/pkgmeta"
	"github.com/pakt/pakt/pkg/version"
)

func newPackage(t *testing.T, name, ver string, requires map[string]string) *pkgmeta.Package {
	t.Helper()
	pkg, err := pkgmeta.FromRecord(pkgmeta.Record{Name: name, Version: ver, Require: requires})
	require.NoError(t, err)
	return pkg
}

func TestInstalledRepository_MissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	repo, err := NewInstalledRepository(filepath.Join(t.TempDir(), "vendor", "pakt", "installed.json"))
	require.NoError(t, err)
	assert.Equal(t, 0, repo.Count())
	assert.Equal(t, "installed", repo.Name())
}

func TestInstalledRepository_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "installed.json")

	repo, err := NewInstalledRepository(path)
	require.NoError(t, err)

	widgets := newPackage(t, "acme/widgets", "1.2.0", map[string]string{"acme/core": "^1.0"})
	widgets.Source = &pkgmeta.Source{Type: pkgmeta.SourceGit, URL: "https://example.com/w.git", Reference: "abc123"}
	widgets.InstallationSource = pkgmeta.InstalledFromSource
	widgets.Extra = map[string]json.RawMessage{"description": json.RawMessage(`"widgets"`)}
	core := newPackage(t, "acme/core", "dev-main", nil)

	repo.AddPackage(widgets)
	repo.AddPackage(core)
	require.NoError(t, repo.Write(ctx))

	first, err := os.ReadFile(path)
	require.NoError(t, err)

	again, err := NewInstalledRepository(path)
	require.NoError(t, err)
	require.Equal(t, 2, again.Count())
	require.NoError(t, again.Write(ctx))

	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second), "write → read → write must be byte-identical")

	got := again.Packages()
	assert.Equal(t, "acme/core", got[0].Name)
	assert.Equal(t, "acme/widgets", got[1].Name)
	assert.True(t, widgets.SameRelease(got[1]))
	assert.Equal(t, pkgmeta.InstalledFromSource, got[1].InstallationSource)
	assert.JSONEq(t, `"widgets"`, string(got[1].Extra["description"]))
}

func TestInstalledRepository_RemovePackage(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "installed.json")
	repo, err := NewInstalledRepository(path)
	require.NoError(t, err)

	a := newPackage(t, "a/a", "1.0.0", nil)
	repo.AddPackage(a)
	repo.AddPackage(newPackage(t, "a/a", "1.0.0", nil))
	assert.Equal(t, 1, repo.Count(), "same name and version replaces")

	assert.True(t, repo.RemovePackage(a))
	assert.False(t, repo.RemovePackage(a))
	require.NoError(t, repo.Write(context.Background()))

	reloaded, err := NewInstalledRepository(path)
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.Count())
}

func TestOpenFilesystemRepository_IndexForm(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "packages.json")
	doc := `{"packages": {
		"acme/widgets": {
			"1.0.0": {"require": {"acme/core": "^1.0"}},
			"1.1.0": {"name": "acme/widgets", "version": "1.1.0"}
		},
		"acme/core": {"1.0.0": {}}
	}}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	repo, err := OpenFilesystemRepository(path)
	require.NoError(t, err)

	pkgs, err := repo.FindPackages(context.Background(), "ACME/Widgets", version.MustParseConstraints(">=1.0"))
	require.NoError(t, err)
	require.Len(t, pkgs, 2)
	assert.Equal(t, "1.0.0", pkgs[0].PrettyVersion())
	assert.Equal(t, "1.1.0", pkgs[1].PrettyVersion())
	require.Len(t, pkgs[0].Requires, 1)
	assert.Equal(t, "acme/core", pkgs[0].Requires[0].Target)

	names, err := repo.PackageNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"acme/core", "acme/widgets"}, names)
}

func TestOpenFilesystemRepository_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	malformed := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(malformed, []byte(`{"packages": 12`), 0o644))
	badVersion := filepath.Join(dir, "badver.json")
	require.NoError(t, os.WriteFile(badVersion, []byte(`[{"name": "a/b", "version": "nope"}]`), 0o644))

	for _, path := range []string{filepath.Join(dir, "missing.json"), malformed, badVersion} {
		_, err := OpenFilesystemRepository(path)
		require.Error(t, err, path)
		assert.True(t, errors.Is(err, ErrRepositoryUnavailable), "%s: %v", path, err)

		var ue *UnavailableError
		require.True(t, errors.As(err, &ue))
		assert.Equal(t, path, ue.Repository)
	}
}

func TestPlatformRepository(t *testing.T) {
	t.Parallel()

	repo, err := NewPlatformRepository(map[string]string{"php": "8.2.1", "ext-json": "8.2.1"})
	require.NoError(t, err)

	pkgs, err := repo.FindPackages(context.Background(), "php", version.MustParseConstraints("^8.1"))
	require.NoError(t, err)
	require.Len(t, pkgs, 1)
	assert.True(t, pkgs[0].IsPlatform())

	_, err = NewPlatformRepository(map[string]string{"php": "eight"})
	assert.ErrorIs(t, err, version.ErrInvalidVersionFormat)
}
