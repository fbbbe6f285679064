// SPDX-License-Identifier: MPL-2.0

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/pakt/pakt/pkg/pkgmeta"
	"github.com/pakt/pakt/pkg/version"
)

// ManifestFile is the project manifest read from each VCS ref.
const ManifestFile = "pakt.json"

type (
	// VcsOptions configures a VcsRepository.
	VcsOptions struct {
		// Auth overrides credential detection.
		Auth   transport.AuthMethod
		Logger *log.Logger
		// Getenv and HomeDir feed credential detection; they default to
		// os.Getenv and os.UserHomeDir.
		Getenv  func(string) string
		HomeDir string
	}

	// VcsRepository publishes the versions of a single git repository.
	// Tags that parse as versions become releases and branches become dev
	// versions; each ref's pakt.json supplies the package metadata.
	VcsRepository struct {
		url    string
		auth   transport.AuthMethod
		logger *log.Logger

		mu       sync.Mutex
		loaded   bool
		packages []*pkgmeta.Package
	}
)

// NewVcsRepository returns a repository for the git remote at url.
func NewVcsRepository(url string, opts VcsOptions) *VcsRepository {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	auth := opts.Auth
	if auth == nil {
		getenv := opts.Getenv
		if getenv == nil {
			getenv = os.Getenv
		}
		home := opts.HomeDir
		if home == "" {
			home, _ = os.UserHomeDir()
		}
		auth = DetectAuth(url, getenv, home)
	}
	return &VcsRepository{url: url, auth: auth, logger: logger}
}

// Name implements Repository.
func (r *VcsRepository) Name() string { return r.url }

// FindPackages implements Repository.
func (r *VcsRepository) FindPackages(ctx context.Context, name string, c version.Constraint) ([]*pkgmeta.Package, error) {
	pkgs, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	return filterPackages(pkgs, name, c), nil
}

// PackageNames implements Lister.
func (r *VcsRepository) PackageNames(ctx context.Context) ([]string, error) {
	pkgs, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]struct{})
	for _, p := range pkgs {
		names[p.Name] = struct{}{}
	}
	return slices.Sorted(maps.Keys(names)), nil
}

func (r *VcsRepository) load(ctx context.Context) ([]*pkgmeta.Package, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded {
		return r.packages, nil
	}

	repo, err := git.CloneContext(ctx, memory.NewStorage(), nil, &git.CloneOptions{
		URL:        r.url,
		Auth:       r.auth,
		NoCheckout: true,
		Tags:       git.AllTags,
	})
	if err != nil {
		if errors.Is(err, transport.ErrEmptyRemoteRepository) {
			r.loaded = true
			return nil, nil
		}
		return nil, unavailable(r.Name(), "clone failed", err)
	}

	refs, err := repo.References()
	if err != nil {
		return nil, unavailable(r.Name(), "cannot list references", err)
	}

	byVersion := make(map[string]*pkgmeta.Package)
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference {
			return nil
		}
		var v version.Version
		switch name := ref.Name(); {
		case name.IsTag():
			tv, err := version.FromTag(name.Short())
			if err != nil {
				r.logger.Debug("ignoring tag", "repository", r.url, "tag", name.Short(), "err", err)
				return nil
			}
			v = tv
		case name.IsBranch():
			v = version.NormalizeBranch(name.Short())
		case name.IsRemote():
			branch := strings.TrimPrefix(name.Short(), "origin/")
			if branch == "HEAD" || branch == name.Short() {
				return nil
			}
			v = version.NormalizeBranch(branch)
		default:
			return nil
		}
		if _, seen := byVersion[v.Normalized]; seen {
			return nil
		}

		commit, err := peelCommit(repo, ref.Hash())
		if err != nil {
			r.logger.Debug("ignoring ref without commit", "repository", r.url, "ref", ref.Name(), "err", err)
			return nil
		}
		pkg, err := r.packageAt(commit, v)
		if err != nil {
			r.logger.Debug("ignoring ref", "repository", r.url, "ref", ref.Name(), "err", err)
			return nil
		}
		byVersion[v.Normalized] = pkg
		return nil
	})
	if err != nil {
		return nil, unavailable(r.Name(), "cannot walk references", err)
	}

	pkgs := slices.Collect(maps.Values(byVersion))
	sortPackages(pkgs)
	r.packages = pkgs
	r.loaded = true
	r.logger.Debug("loaded vcs repository", "repository", r.url, "versions", len(pkgs))
	return pkgs, nil
}

func (r *VcsRepository) packageAt(commit *object.Commit, v version.Version) (*pkgmeta.Package, error) {
	f, err := commit.File(ManifestFile)
	if err != nil {
		return nil, fmt.Errorf("no %s: %w", ManifestFile, err)
	}
	contents, err := f.Contents()
	if err != nil {
		return nil, err
	}
	var rec pkgmeta.Record
	if err := json.Unmarshal([]byte(contents), &rec); err != nil {
		return nil, fmt.Errorf("malformed %s: %w", ManifestFile, err)
	}
	rec.Version = v.String()
	rec.VersionNormalized = v.Normalized
	rec.Source = &pkgmeta.Source{Type: pkgmeta.SourceGit, URL: r.url, Reference: commit.Hash.String()}
	rec.Dist = nil
	rec.InstallationSource = ""
	return pkgmeta.FromRecord(rec)
}

// peelCommit resolves an annotated tag to the commit it points at.
func peelCommit(repo *git.Repository, h plumbing.Hash) (*object.Commit, error) {
	if tag, err := repo.TagObject(h); err == nil {
		return tag.Commit()
	}
	return repo.CommitObject(h)
}

// DetectAuth picks credentials for url: an SSH key from home/.ssh for SSH
// remotes, or a token from GITHUB_TOKEN, GITLAB_TOKEN or GIT_TOKEN for HTTP
// remotes. It returns nil when nothing applies.
func DetectAuth(url string, getenv func(string) string, home string) transport.AuthMethod {
	if strings.HasPrefix(url, "git@") || strings.HasPrefix(url, "ssh://") {
		if home == "" {
			return nil
		}
		for _, key := range []string{"id_ed25519", "id_rsa", "id_ecdsa"} {
			path := filepath.Join(home, ".ssh", key)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			if auth, err := ssh.NewPublicKeysFromFile("git", path, ""); err == nil {
				return auth
			}
		}
		return nil
	}
	if !strings.HasPrefix(url, "https://") && !strings.HasPrefix(url, "http://") {
		return nil
	}
	tokens := []struct{ env, user string }{
		{"GITHUB_TOKEN", "x-access-token"},
		{"GITLAB_TOKEN", "gitlab-ci-token"},
		{"GIT_TOKEN", "git"},
	}
	for _, t := range tokens {
		if token := getenv(t.env); token != "" {
			return &http.BasicAuth{Username: t.user, Password: token}
		}
	}
	return nil
}
