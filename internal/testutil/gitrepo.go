// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

var fixtureSignature = object.Signature{
	Name:  "pakt fixtures",
	Email: "fixtures@pakt.invalid",
	When:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
}

// GitRepo is a non-bare git repository on disk for tests. Commits are
// created with a fixed author and timestamp so hashes are reproducible
// within a test.
type GitRepo struct {
	t    testing.TB
	Dir  string
	Repo *git.Repository
	tick time.Duration
}

// RequireGit skips the test when the git executable is not on PATH.
func RequireGit(t testing.TB) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available on PATH")
	}
}

// NewGitRepo initializes an empty repository whose default branch is main.
func NewGitRepo(t testing.TB) *GitRepo {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInitWithOptions(dir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName("main")},
	})
	if err != nil {
		t.Fatalf("git init %s: %v", dir, err)
	}
	return &GitRepo{t: t, Dir: dir, Repo: repo}
}

// URL returns a file URL for cloning the repository.
func (g *GitRepo) URL() string {
	return "file://" + filepath.ToSlash(g.Dir)
}

// Commit writes files (path → content) into the worktree, stages them and
// commits on the current branch.
func (g *GitRepo) Commit(msg string, files map[string]string) plumbing.Hash {
	g.t.Helper()
	wt, err := g.Repo.Worktree()
	if err != nil {
		g.t.Fatalf("worktree: %v", err)
	}
	for name, content := range files {
		path := filepath.Join(g.Dir, filepath.FromSlash(name))
		MustMkdirAll(g.t, filepath.Dir(path))
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			g.t.Fatalf("write %s: %v", name, err)
		}
		if _, err := wt.Add(name); err != nil {
			g.t.Fatalf("git add %s: %v", name, err)
		}
	}
	g.tick += time.Minute
	sig := fixtureSignature
	sig.When = sig.When.Add(g.tick)
	h, err := wt.Commit(msg, &git.CommitOptions{Author: &sig, Committer: &sig, AllowEmptyCommits: true})
	if err != nil {
		g.t.Fatalf("git commit: %v", err)
	}
	return h
}

// Tag creates a lightweight tag at h.
func (g *GitRepo) Tag(name string, h plumbing.Hash) {
	g.t.Helper()
	if _, err := g.Repo.CreateTag(name, h, nil); err != nil {
		g.t.Fatalf("git tag %s: %v", name, err)
	}
}

// AnnotatedTag creates an annotated tag at h.
func (g *GitRepo) AnnotatedTag(name string, h plumbing.Hash) {
	g.t.Helper()
	sig := fixtureSignature
	if _, err := g.Repo.CreateTag(name, h, &git.CreateTagOptions{Tagger: &sig, Message: "release " + name}); err != nil {
		g.t.Fatalf("git tag -a %s: %v", name, err)
	}
}

// Checkout switches the worktree to branch, creating it at the current
// HEAD when create is set.
func (g *GitRepo) Checkout(branch string, create bool) {
	g.t.Helper()
	wt, err := g.Repo.Worktree()
	if err != nil {
		g.t.Fatalf("worktree: %v", err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Branch: plumbing.NewBranchReferenceName(branch), Create: create}); err != nil {
		g.t.Fatalf("git checkout %s: %v", branch, err)
	}
}
