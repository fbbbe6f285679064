// SPDX-License-Identifier: MPL-2.0

package execute

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/pakt/pakt/internal/clock"
	"github.com/pakt/pakt/internal/config"
	"github.com/pakt/pakt/internal/metacache"
	"github.com/pakt/pakt/internal/process"
	"github.com/pakt/pakt/pkg/downloader"
	"github.com/pakt/pakt/pkg/installer"
	"github.com/pakt/pakt/pkg/manifest"
	"github.com/pakt/pakt/pkg/repository"
	"github.com/pakt/pakt/pkg/resolver"
	"github.com/pakt/pakt/pkg/version"
)

// InstalledFile is the installed-package record, relative to the vendor
// directory.
const InstalledFile = "pakt/installed.json"

// ErrUnknownRepositoryType is the sentinel error wrapped by UnknownRepositoryTypeError.
var ErrUnknownRepositoryType = errors.New("unknown repository type")

type (
	// UnknownRepositoryTypeError reports a repository declaration pakt cannot build.
	UnknownRepositoryTypeError struct {
		Type string
		URL  string
	}

	// Flags are the command-line overrides of a run. Nil pointers leave the
	// manifest and config values in place.
	Flags struct {
		PreferSource       *bool
		DryRun             bool
		DevMode            bool
		NoScripts          bool
		NoCustomInstallers bool
		ContinueOnError    *bool
		Verbose            bool
		MinimumStability   string
	}

	// SessionOptions configures NewSession.
	//
	// Config and Manifest are required. ProjectDir defaults to the working
	// directory.
	SessionOptions struct {
		Config     *config.Config
		Manifest   *manifest.Manifest
		ProjectDir string
		Flags      Flags

		Out    io.Writer
		Logger *log.Logger
		// Runner executes VCS commands and scripts; defaults to an ExecRunner.
		Runner process.Runner
		// Clock drives metadata cache expiry; defaults to the system clock.
		Clock clock.Clock
	}

	// Session holds everything one install or update run needs.
	Session struct {
		Config       config.Config
		Manifest     *manifest.Manifest
		ProjectDir   string
		VendorDir    string
		Repositories *repository.CompositeRepository
		Installed    *repository.FilesystemRepository
		Downloads    *downloader.Manager
		Installer    *installer.Installer

		minimum      version.Stability
		preferStable bool
		devMode      bool
		cache        *metacache.Cache
	}
)

// Error implements the error interface.
func (e *UnknownRepositoryTypeError) Error() string {
	return fmt.Sprintf("unknown repository type %q for %s (want registry, filesystem or vcs)", e.Type, e.URL)
}

// Unwrap returns ErrUnknownRepositoryType for errors.Is() compatibility.
func (e *UnknownRepositoryTypeError) Unwrap() error { return ErrUnknownRepositoryType }

// NewSession resolves the effective settings and builds the collaborators.
// Precedence for every setting is flag, then manifest, then user config.
// Close releases the metadata cache.
func NewSession(ctx context.Context, opts SessionOptions) (*Session, error) {
	if opts.Config == nil || opts.Manifest == nil {
		return nil, errors.New("execute: config and manifest are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	runner := opts.Runner
	if runner == nil {
		runner = process.NewExecRunner(logger)
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	projectDir := opts.ProjectDir
	if projectDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		projectDir = wd
	}

	cfg := opts.Config.WithProject(opts.Manifest.Config)
	if opts.Flags.PreferSource != nil {
		cfg.PreferSource = *opts.Flags.PreferSource
	}
	if opts.Flags.ContinueOnError != nil {
		cfg.ContinueOnError = *opts.Flags.ContinueOnError
	}
	if opts.Flags.Verbose {
		cfg.UI.Verbose = true
	}

	s := &Session{
		Config:     cfg,
		Manifest:   opts.Manifest,
		ProjectDir: projectDir,
		VendorDir:  absUnder(projectDir, cfg.VendorDir),
		devMode:    opts.Flags.DevMode,
	}
	if err := s.resolveStability(opts.Flags.MinimumStability); err != nil {
		return nil, err
	}

	selection, err := cfg.SelectionPolicy.Selection()
	if err != nil {
		return nil, err
	}
	timeout, err := cfg.HTTP.Timeout.Duration()
	if err != nil {
		return nil, err
	}

	if cfg.CacheDir != "" {
		if err := os.MkdirAll(cfg.CacheDir, 0o755); err == nil {
			if s.cache, err = metacache.OpenDir(ctx, cfg.CacheDir, clk); err != nil {
				logger.Warn("metadata cache unavailable", "dir", cfg.CacheDir, "err", err)
			}
		} else {
			logger.Warn("metadata cache unavailable", "dir", cfg.CacheDir, "err", err)
		}
	}

	members, err := s.buildMembers(ctx, repoBuild{timeout: timeout, logger: logger})
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.Repositories = repository.NewCompositeRepository(logger, members...)

	if s.Installed, err = repository.NewInstalledRepository(filepath.Join(s.VendorDir, filepath.FromSlash(InstalledFile))); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("read installed packages: %w", err)
	}

	s.Downloads = downloader.NewManager(downloader.ManagerOptions{
		PreferSource: cfg.PreferSource,
		VCS:          downloader.NewVcsDownloader(downloader.VcsOptions{Runner: runner, Out: out, Verbose: cfg.UI.Verbose, Logger: logger}),
		Archive:      downloader.NewArchiveDownloader(downloader.ArchiveOptions{Timeout: timeout, Out: out, Logger: logger}),
		Logger:       logger,
	})

	var hooks installer.Dispatcher
	if !opts.Flags.NoScripts && len(opts.Manifest.Scripts) > 0 {
		sh, err := installer.NewScriptHooks(runner, opts.Manifest.Scripts)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		hooks = sh
	}

	s.Installer = installer.New(installer.Options{
		Repositories:       s.Repositories,
		Installed:          s.Installed,
		Downloads:          s.Downloads,
		VendorDir:          s.VendorDir,
		ProjectDir:         projectDir,
		DryRun:             opts.Flags.DryRun,
		NoCustomInstallers: opts.Flags.NoCustomInstallers,
		ContinueOnError:    cfg.ContinueOnError,
		Notify:             cfg.Notify,
		Policy:             resolver.Policy{Stability: version.DefaultStabilityOrder(), Selection: selection},
		Handoff:            installer.JSONHandoff{VendorDir: s.VendorDir},
		Hooks:              hooks,
		Logger:             logger,
		Out:                out,
	})
	return s, nil
}

// resolveStability applies flag, then manifest, then config. prefer-stable
// has no flag; a manifest value, true or false, wins over the config.
func (s *Session) resolveStability(flag string) error {
	name := string(s.Config.MinimumStability)
	if s.Manifest.MinimumStability != "" {
		name = s.Manifest.MinimumStability
	}
	if flag != "" {
		name = flag
	}
	st, err := config.StabilityName(name).Stability()
	if err != nil {
		return err
	}
	s.minimum = st
	s.preferStable = s.Config.PreferStable
	if s.Manifest.PreferStable != nil {
		s.preferStable = *s.Manifest.PreferStable
	}
	return nil
}

// MinimumStability returns the effective stability floor.
func (s *Session) MinimumStability() version.Stability { return s.minimum }

type repoBuild struct {
	timeout time.Duration
	logger  *log.Logger
}

// buildMembers orders the composite: platform packages first, then the
// manifest's repositories in declaration order, then the user config's.
func (s *Session) buildMembers(ctx context.Context, b repoBuild) ([]repository.Member, error) {
	var members []repository.Member
	if len(s.Config.Platform) > 0 {
		platform, err := repository.NewPlatformRepository(s.Config.Platform)
		if err != nil {
			return nil, err
		}
		members = append(members, repository.Member{Repository: platform})
	}

	decls := make([]config.RepositoryEntry, 0, len(s.Manifest.Repositories)+len(s.Config.Repositories))
	for _, r := range s.Manifest.Repositories {
		decls = append(decls, config.RepositoryEntry{Type: config.RepositoryType(r.Type), URL: r.URL, Optional: r.Optional})
	}
	decls = append(decls, s.Config.Repositories...)

	for _, d := range decls {
		repo, err := s.buildRepository(ctx, d, b)
		if err != nil {
			if d.Optional {
				b.logger.Warn("skipping optional repository", "url", d.URL, "err", err)
				continue
			}
			return nil, err
		}
		members = append(members, repository.Member{Repository: repo, Optional: d.Optional})
	}
	return members, nil
}

func (s *Session) buildRepository(_ context.Context, d config.RepositoryEntry, b repoBuild) (repository.Repository, error) {
	switch d.Type {
	case config.RepositoryRegistry:
		return repository.NewRegistryRepository(d.URL, repository.RegistryOptions{Timeout: b.timeout, Cache: s.cache, Logger: b.logger})
	case config.RepositoryFilesystem:
		return repository.OpenFilesystemRepository(absUnder(s.ProjectDir, d.URL))
	case config.RepositoryVCS:
		return repository.NewVcsRepository(d.URL, repository.VcsOptions{Logger: b.logger}), nil
	default:
		return nil, &UnknownRepositoryTypeError{Type: string(d.Type), URL: d.URL}
	}
}

// Request builds the installer request for an install (update false) or an
// update of allow (every package when empty).
func (s *Session) Request(update bool, allow []string) installer.Request {
	return installer.Request{
		Manifest:         s.Manifest,
		DevMode:          s.devMode,
		MinimumStability: s.minimum,
		PreferStable:     s.preferStable,
		Update:           update,
		UpdateAllowList:  allow,
	}
}

// Run executes an install or update.
func (s *Session) Run(ctx context.Context, update bool, allow []string) (*installer.Report, error) {
	return s.Installer.Run(ctx, s.Request(update, allow))
}

// Close releases the metadata cache.
func (s *Session) Close() error {
	if s.cache == nil {
		return nil
	}
	err := s.cache.Close()
	s.cache = nil
	return err
}

func absUnder(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
