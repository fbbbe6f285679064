// SPDX-License-Identifier: MPL-2.0

package repository

import (
	"bytes"
	"context"
	"crypto/sha1" //nolint:gosec // registries publish sha1 digests for includes
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/pakt/pakt/internal/metacache"
	"github.com/pakt/pakt/pkg/pkgmeta"
	"github.com/pakt/pakt/pkg/version"
)

// IndexFile is the registry entry point, relative to the registry URL.
const IndexFile = "packages.json"

type (
	// RegistryOptions configures a RegistryRepository.
	RegistryOptions struct {
		// Client performs HTTP requests; defaults to a client with Timeout.
		Client *http.Client
		// Timeout bounds each request when Client is nil. Default 30s.
		Timeout time.Duration
		// Cache stores responses for revalidation and offline use. Optional.
		Cache  *metacache.Cache
		Logger *log.Logger
	}

	// RegistryRepository reads packages from a remote packages.json index.
	//
	// The index maps names to versions to records, may reference further
	// files under "includes" (each with a sha1 digest), and may advertise a
	// "notify" URL template where installs are reported.
	RegistryRepository struct {
		base   *url.URL
		client *http.Client
		cache  *metacache.Cache
		logger *log.Logger

		mu        sync.Mutex
		loaded    bool
		packages  []*pkgmeta.Package
		notifyURL string
	}

	registryIndex struct {
		Packages map[string]map[string]pkgmeta.Record `json:"packages"`
		Includes map[string]struct {
			Sha1 string `json:"sha1"`
		} `json:"includes"`
		Notify string `json:"notify"`
	}
)

// NewRegistryRepository returns a repository for the registry at rawURL.
func NewRegistryRepository(rawURL string, opts RegistryOptions) (*RegistryRepository, error) {
	base, err := url.Parse(strings.TrimRight(rawURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid registry URL %q: %w", rawURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid registry URL %q: scheme must be http or https", rawURL)
	}
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &RegistryRepository{base: base, client: client, cache: opts.Cache, logger: logger}, nil
}

// Name implements Repository.
func (r *RegistryRepository) Name() string {
	return strings.TrimSuffix(r.base.String(), "/")
}

// FindPackages implements Repository.
func (r *RegistryRepository) FindPackages(ctx context.Context, name string, c version.Constraint) ([]*pkgmeta.Package, error) {
	pkgs, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	return filterPackages(pkgs, name, c), nil
}

// PackageNames implements Lister.
func (r *RegistryRepository) PackageNames(ctx context.Context) ([]string, error) {
	pkgs, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]struct{}, len(pkgs))
	for _, p := range pkgs {
		names[p.Name] = struct{}{}
	}
	return slices.Sorted(maps.Keys(names)), nil
}

// NotifyInstall implements Notifier. It POSTs the installed version to the
// index's notify URL; registries without one are not contacted.
func (r *RegistryRepository) NotifyInstall(ctx context.Context, pkg *pkgmeta.Package, runID string) error {
	if _, err := r.load(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	tmpl := r.notifyURL
	r.mu.Unlock()
	if tmpl == "" {
		return nil
	}

	target, err := r.base.Parse(strings.ReplaceAll(tmpl, "%package%", pkg.Name))
	if err != nil {
		return fmt.Errorf("invalid notify URL %q: %w", tmpl, err)
	}
	body, err := json.Marshal(map[string]string{"version": pkg.Version.Normalized, "run": runID})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify %s: %w", target, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify %s: HTTP %d", target, resp.StatusCode)
	}
	return nil
}

func (r *RegistryRepository) load(ctx context.Context) ([]*pkgmeta.Package, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded {
		return r.packages, nil
	}

	data, err := r.fetch(ctx, IndexFile)
	if err != nil {
		return nil, err
	}
	var index registryIndex
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, unavailable(r.Name(), "malformed "+IndexFile, err)
	}
	records := flattenIndex(index.Packages)

	for _, file := range slices.Sorted(maps.Keys(index.Includes)) {
		inc, err := r.fetch(ctx, file)
		if err != nil {
			return nil, err
		}
		if want := index.Includes[file].Sha1; want != "" {
			sum := sha1.Sum(inc) //nolint:gosec // digest format is fixed by the index
			if got := hex.EncodeToString(sum[:]); !strings.EqualFold(got, want) {
				return nil, unavailable(r.Name(), fmt.Sprintf("include %s has sha1 %s, index says %s", file, got, want), nil)
			}
		}
		var included registryIndex
		if err := json.Unmarshal(inc, &included); err != nil {
			return nil, unavailable(r.Name(), "malformed include "+file, err)
		}
		records = append(records, flattenIndex(included.Packages)...)
	}

	pkgs := make([]*pkgmeta.Package, 0, len(records))
	for _, rec := range records {
		p, err := pkgmeta.FromRecord(rec)
		if err != nil {
			r.logger.Warn("skipping invalid package record", "repository", r.Name(), "package", rec.Name, "version", rec.Version, "err", err)
			continue
		}
		pkgs = append(pkgs, p)
	}
	sortPackages(pkgs)

	r.packages = pkgs
	r.notifyURL = index.Notify
	r.loaded = true
	r.logger.Debug("loaded registry index", "repository", r.Name(), "packages", len(pkgs))
	return pkgs, nil
}

// fetch downloads a file relative to the registry base. With a cache, the
// request is conditional and a failure falls back to the cached copy.
func (r *RegistryRepository) fetch(ctx context.Context, file string) ([]byte, error) {
	target, err := r.base.Parse(file)
	if err != nil {
		return nil, unavailable(r.Name(), "invalid path "+file, err)
	}
	u := target.String()

	var (
		cached    metacache.Entry
		haveCache bool
	)
	if r.cache != nil {
		if cached, haveCache, err = r.cache.Get(ctx, u); err != nil {
			r.logger.Warn("metadata cache read failed", "url", u, "err", err)
			haveCache = false
		}
	}

	fallback := func(reason string, cause error) ([]byte, error) {
		if haveCache {
			r.logger.Warn("registry unreachable, using cached metadata", "url", u, "reason", reason, "fetched", cached.FetchedAt)
			return cached.Body, nil
		}
		return nil, unavailable(r.Name(), reason, cause)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, unavailable(r.Name(), "bad request", err)
	}
	req.Header.Set("Accept", "application/json")
	if haveCache {
		if cached.ETag != "" {
			req.Header.Set("If-None-Match", cached.ETag)
		}
		if cached.LastModified != "" {
			req.Header.Set("If-Modified-Since", cached.LastModified)
		}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, unavailable(r.Name(), "request cancelled", ctx.Err())
		}
		return fallback("GET "+u+" failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotModified && haveCache:
		if err := r.cache.Touch(ctx, u); err != nil {
			r.logger.Warn("metadata cache update failed", "url", u, "err", err)
		}
		return cached.Body, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fallback("reading "+u+" failed", err)
		}
		if r.cache != nil {
			entry := metacache.Entry{
				URL:          u,
				ETag:         resp.Header.Get("ETag"),
				LastModified: resp.Header.Get("Last-Modified"),
				Body:         body,
			}
			if err := r.cache.Put(ctx, entry); err != nil {
				r.logger.Warn("metadata cache write failed", "url", u, "err", err)
			}
		}
		return body, nil
	default:
		return fallback(fmt.Sprintf("GET %s returned HTTP %d", u, resp.StatusCode), nil)
	}
}
