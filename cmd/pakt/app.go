// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/pakt/pakt/internal/app/execute"
	"github.com/pakt/pakt/internal/config"
	"github.com/pakt/pakt/internal/issue"
	"github.com/pakt/pakt/internal/process"
	"github.com/pakt/pakt/pkg/manifest"
)

type (
	// App wires CLI services and shared dependencies. It is the composition
	// root for the CLI layer: every Cobra handler receives an App and
	// delegates through it.
	App struct {
		Config config.Provider
		// Runner executes VCS commands and scripts.
		Runner process.Runner

		flags  globalFlags
		stdout io.Writer
		stderr io.Writer
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config config.Provider
		Runner process.Runner
		Stdout io.Writer
		Stderr io.Writer
	}

	globalFlags struct {
		verbose    bool
		configFile string
		configDir  string
		workingDir string
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	return &App{
		Config: deps.Config,
		Runner: deps.Runner,
		stdout: deps.Stdout,
		stderr: deps.Stderr,
	}
}

// projectDir returns the absolute --working-dir, or the current directory.
func (a *App) projectDir() (string, error) {
	if a.flags.workingDir == "" {
		return os.Getwd()
	}
	return filepath.Abs(a.flags.workingDir)
}

func (a *App) loadOptions(baseDir string) config.LoadOptions {
	return config.LoadOptions{
		ConfigFilePath: a.flags.configFile,
		ConfigDirPath:  a.flags.configDir,
		BaseDir:        baseDir,
	}
}

// loadConfig reads the user configuration for a project directory.
func (a *App) loadConfig(ctx context.Context, baseDir string) (*config.Config, error) {
	return a.Config.Load(ctx, a.loadOptions(baseDir))
}

// verbose reports whether the flag or the configuration asks for detail.
func (a *App) verbose(cfg *config.Config) bool {
	return a.flags.verbose || (cfg != nil && cfg.UI.Verbose)
}

// newLogger builds the stderr logger for one command.
func (a *App) newLogger(cfg *config.Config) *log.Logger {
	logger := log.NewWithOptions(a.stderr, log.Options{Prefix: "pakt", ReportTimestamp: false})
	if a.verbose(cfg) {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.InfoLevel)
	}
	return logger
}

// loadManifest reads pakt.json from dir and attaches guidance to failures.
func loadManifest(dir string) (*manifest.Manifest, error) {
	m, err := manifest.LoadDir(dir)
	if err == nil {
		return m, nil
	}
	path := filepath.Join(dir, manifest.FileName)
	if errors.Is(err, manifest.ErrManifestNotFound) {
		return nil, issue.NewErrorContext().
			WithOperation("read manifest").
			WithResource(path).
			WithIssue(issue.ManifestNotFoundId).
			WithSuggestion("Run pakt from the project directory or pass --working-dir").
			Wrap(err).
			BuildError()
	}
	return nil, issue.NewErrorContext().
		WithOperation("parse manifest").
		WithResource(path).
		WithIssue(issue.ManifestParseErrorId).
		Wrap(err).
		BuildError()
}

// openSession loads everything an install or update needs.
func (a *App) openSession(ctx context.Context, flags execute.Flags) (*execute.Session, error) {
	dir, err := a.projectDir()
	if err != nil {
		return nil, err
	}
	m, err := loadManifest(dir)
	if err != nil {
		return nil, err
	}
	cfg, err := a.loadConfig(ctx, dir)
	if err != nil {
		return nil, err
	}
	flags.Verbose = flags.Verbose || a.flags.verbose
	return execute.NewSession(ctx, execute.SessionOptions{
		Config:     cfg,
		Manifest:   m,
		ProjectDir: dir,
		Flags:      flags,
		Out:        a.stdout,
		Logger:     a.newLogger(cfg),
		Runner:     a.Runner,
	})
}
