// SPDX-License-Identifier: MPL-2.0

package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pakt/pakt/internal/testutil"
	"github.com/pakt/pakt/pkg/pkgmeta"
	"github.com/pakt/pakt/pkg/version"
)

func TestVcsRepository_TagsAndBranches(t *testing.T) {
	t.Parallel()
	testutil.RequireGit(t)

	fixture := testutil.NewGitRepo(t)
	v1 := fixture.Commit("v1", map[string]string{
		ManifestFile: `{"name": "acme/widgets", "require": {"acme/core": "^1.0"}}`,
	})
	fixture.Tag("v1.0.0", v1)
	v11 := fixture.Commit("v1.1", map[string]string{"src/a.txt": "a"})
	fixture.AnnotatedTag("1.1.0", v11)
	fixture.Tag("not-a-version", v11)
	head := fixture.Commit("work", map[string]string{"src/b.txt": "b"})

	fixture.Checkout("feature", true)
	feature := fixture.Commit("feature", map[string]string{"src/c.txt": "c"})
	fixture.Checkout("1.x", true)
	fixture.Checkout("nomanifest", true)
	_ = fixture.Commit("drop manifest", map[string]string{ManifestFile: "not json"})

	repo := NewVcsRepository(fixture.URL(), VcsOptions{Getenv: func(string) string { return "" }, HomeDir: t.TempDir()})
	pkgs, err := repo.FindPackages(context.Background(), "acme/widgets", nil)
	require.NoError(t, err)

	byVersion := make(map[string]*pkgmeta.Package, len(pkgs))
	for _, p := range pkgs {
		byVersion[p.PrettyVersion()] = p
	}
	require.Contains(t, byVersion, "v1.0.0")
	require.Contains(t, byVersion, "1.1.0")
	require.Contains(t, byVersion, "dev-main")
	require.Contains(t, byVersion, "dev-feature")
	require.Contains(t, byVersion, "1.x-dev")
	assert.NotContains(t, byVersion, "dev-nomanifest")
	assert.Len(t, pkgs, 5)

	assert.Equal(t, v1.String(), byVersion["v1.0.0"].SourceReference())
	assert.Equal(t, v11.String(), byVersion["1.1.0"].SourceReference(), "annotated tags are peeled")
	assert.Equal(t, head.String(), byVersion["dev-main"].SourceReference())
	assert.Equal(t, feature.String(), byVersion["dev-feature"].SourceReference())
	assert.Equal(t, pkgmeta.SourceGit, byVersion["dev-main"].Source.Type)
	assert.Equal(t, fixture.URL(), byVersion["dev-main"].Source.URL)
	require.Len(t, byVersion["v1.0.0"].Requires, 1)

	for i := 1; i < len(pkgs); i++ {
		assert.Negative(t, version.Compare(pkgs[i-1].Version, pkgs[i].Version), "ascending order")
	}

	inRange, err := repo.FindPackages(context.Background(), "acme/widgets", version.MustParseConstraints("^1.0"))
	require.NoError(t, err)
	assert.Len(t, inRange, 3, "1.x-dev sits inside ^1.0; stability filtering is left to the resolver")
}

func TestVcsRepository_UnreachableRemote(t *testing.T) {
	t.Parallel()

	missing := "file://" + filepath.ToSlash(filepath.Join(t.TempDir(), "nope"))
	repo := NewVcsRepository(missing, VcsOptions{Getenv: func(string) string { return "" }})
	_, err := repo.FindPackages(context.Background(), "acme/widgets", nil)
	require.ErrorIs(t, err, ErrRepositoryUnavailable)
}

func TestDetectAuth(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(home, ".ssh", "id_ed25519"), "not a key")

	env := map[string]string{"GITLAB_TOKEN": "gl-secret", "GIT_TOKEN": "generic"}
	getenv := func(k string) string { return env[k] }

	auth := DetectAuth("https://gitlab.example.com/acme/widgets.git", getenv, home)
	basic, ok := auth.(*http.BasicAuth)
	require.True(t, ok, "got %T", auth)
	assert.Equal(t, "gitlab-ci-token", basic.Username)
	assert.Equal(t, "gl-secret", basic.Password)

	assert.Nil(t, DetectAuth("https://example.com/x.git", func(string) string { return "" }, home))
	assert.Nil(t, DetectAuth("file:///tmp/x", getenv, home))
	assert.Nil(t, DetectAuth("git@example.com:acme/x.git", getenv, home), "unparsable key is ignored")
	assert.Nil(t, DetectAuth("git@example.com:acme/x.git", getenv, ""))

	_, err := os.Stat(filepath.Join(home, ".ssh", "id_ed25519"))
	require.NoError(t, err)
}
