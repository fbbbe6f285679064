// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pakt/pakt/internal/config"
	"github.com/pakt/pakt/internal/testutil"
)

type staticConfig struct {
	cfg *config.Config
	err error
}

func (s staticConfig) Load(context.Context, config.LoadOptions) (*config.Config, error) {
	if s.err != nil {
		return nil, s.err
	}
	cp := *s.cfg
	return &cp, nil
}

// cliProject writes a project with a pakt.json requiring acme/core from a
// local packages.json, and returns its directory.
func cliProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	archive := filepath.Join(dir, "dists", "core-1.0.0.zip")
	testutil.MustMkdirAll(t, filepath.Dir(archive))
	f, err := os.Create(archive)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("core/README")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("core")); err != nil {
		t.Fatal(err)
	}
	testutil.MustClose(t, zw)
	testutil.MustClose(t, f)

	testutil.MustWriteFile(t, filepath.Join(dir, "packages.json"), `{"packages": [
		{"name": "acme/core", "version": "1.0.0",
		 "dist": {"type": "zip", "url": "`+filepath.ToSlash(archive)+`"}}
	]}`)
	testutil.MustWriteFile(t, filepath.Join(dir, "pakt.json"), `{
		"name": "acme/app",
		"require": {"acme/core": "^1.0"},
		"repositories": [{"type": "filesystem", "url": "packages.json"}]
	}`)
	return dir
}

func cliConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.CacheDir = filepath.Join(t.TempDir(), "cache")
	return cfg
}

// run executes the CLI with args and returns stdout, stderr and the error.
func run(t *testing.T, provider config.Provider, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := NewApp(Dependencies{Config: provider, Stdout: &stdout, Stderr: &stderr})
	root := NewRootCommand(app)
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.ExecuteContext(t.Context())
	return stdout.String(), stderr.String(), err
}

func exitCode(err error) ExitCode {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return -1
}

func TestGetVersionString(t *testing.T) {
	// Not parallel: subtests mutate package-level Version/Commit/BuildDate vars.

	t.Run("ldflags version", func(t *testing.T) {
		origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
		t.Cleanup(func() {
			Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
		})

		Version = "v1.2.3"
		Commit = "abc1234"
		BuildDate = "2026-06-15T10:00:00Z"

		want := "v1.2.3 (commit: abc1234, built: 2026-06-15T10:00:00Z)"
		if got := getVersionString(); got != want {
			t.Errorf("getVersionString() = %q, want %q", got, want)
		}
	})

	t.Run("dev build", func(t *testing.T) {
		origVersion := Version
		t.Cleanup(func() { Version = origVersion })

		Version = "dev"
		if got := getVersionString(); got != "dev (built from source)" {
			t.Errorf("getVersionString() = %q", got)
		}
	})
}

func TestInstallCommand(t *testing.T) {
	t.Parallel()

	dir := cliProject(t)
	stdout, stderr, err := run(t, staticConfig{cfg: cliConfig(t)}, "install", "--working-dir", dir)
	if err != nil {
		t.Fatalf("install error: %v\nstderr: %s", err, stderr)
	}
	if !strings.Contains(stdout, "Installing acme/core (1.0.0)") {
		t.Errorf("stdout missing progress line:\n%s", stdout)
	}
	if !strings.Contains(stdout, "Package operations: 1 install, 0 updates, 0 removals") {
		t.Errorf("stdout missing summary:\n%s", stdout)
	}
	if got := testutil.MustReadFile(t, filepath.Join(dir, "vendor", "acme", "core", "README")); got != "core" {
		t.Errorf("README = %q", got)
	}

	// A second run has nothing to do.
	stdout, _, err = run(t, staticConfig{cfg: cliConfig(t)}, "install", "--working-dir", dir)
	if err != nil {
		t.Fatalf("second install error: %v", err)
	}
	if !strings.Contains(stdout, "Nothing to install or update") {
		t.Errorf("second run stdout:\n%s", stdout)
	}

	stdout, _, err = run(t, staticConfig{cfg: cliConfig(t)}, "show", "--working-dir", dir, "--json")
	if err != nil {
		t.Fatalf("show error: %v", err)
	}
	if !strings.Contains(stdout, `"name": "acme/core"`) {
		t.Errorf("show --json:\n%s", stdout)
	}

	stdout, _, err = run(t, staticConfig{cfg: cliConfig(t)}, "status", "--working-dir", dir)
	if err != nil {
		t.Fatalf("status error: %v", err)
	}
	if !strings.Contains(stdout, "No local changes") {
		t.Errorf("status stdout:\n%s", stdout)
	}
}

func TestInstallCommand_DryRun(t *testing.T) {
	t.Parallel()

	dir := cliProject(t)
	stdout, _, err := run(t, staticConfig{cfg: cliConfig(t)}, "install", "--dry-run", "-d", dir)
	if err != nil {
		t.Fatalf("install --dry-run error: %v", err)
	}
	if !strings.Contains(stdout, "(dry run)") {
		t.Errorf("stdout:\n%s", stdout)
	}
	if _, err := os.Stat(filepath.Join(dir, "vendor")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("dry run created vendor dir: %v", err)
	}
}

func TestInstallCommand_Errors(t *testing.T) {
	t.Parallel()

	t.Run("missing manifest", func(t *testing.T) {
		t.Parallel()
		_, stderr, err := run(t, staticConfig{cfg: cliConfig(t)}, "install", "-d", t.TempDir())
		if got := exitCode(err); got != ExitInvalidInput {
			t.Fatalf("exit code = %d, want %d (err %v)", got, ExitInvalidInput, err)
		}
		if !strings.Contains(stderr, "failed to read manifest") {
			t.Errorf("stderr:\n%s", stderr)
		}
	})

	t.Run("unsatisfiable", func(t *testing.T) {
		t.Parallel()
		dir := cliProject(t)
		testutil.MustWriteFile(t, filepath.Join(dir, "pakt.json"), `{
			"require": {"acme/core": "^2.0"},
			"repositories": [{"type": "filesystem", "url": "packages.json"}]
		}`)
		_, stderr, err := run(t, staticConfig{cfg: cliConfig(t)}, "install", "-d", dir)
		if got := exitCode(err); got != ExitResolution {
			t.Fatalf("exit code = %d, want %d (err %v)", got, ExitResolution, err)
		}
		if !strings.Contains(stderr, "acme/core") {
			t.Errorf("stderr does not name the package:\n%s", stderr)
		}
	})

	t.Run("config failure", func(t *testing.T) {
		t.Parallel()
		_, _, err := run(t, staticConfig{err: config.ErrInvalidConfig}, "install", "-d", cliProject(t))
		if got := exitCode(err); got != ExitInvalidInput {
			t.Errorf("exit code = %d, want %d", got, ExitInvalidInput)
		}
	})
}

func TestConfigCommands(t *testing.T) {
	t.Parallel()

	cfgDir := t.TempDir()
	provider := config.NewProvider()

	stdout, _, err := run(t, provider, "config", "init", "--config-dir", cfgDir)
	if err != nil {
		t.Fatalf("config init error: %v", err)
	}
	if !strings.Contains(stdout, filepath.Join(cfgDir, "config.cue")) {
		t.Errorf("config init stdout: %s", stdout)
	}

	if _, _, err := run(t, provider, "config", "set", "vendor_dir", "deps", "--config-dir", cfgDir); err != nil {
		t.Fatalf("config set error: %v", err)
	}
	if _, _, err := run(t, provider, "config", "set", "notify", "maybe", "--config-dir", cfgDir); err == nil {
		t.Error("config set accepted a non-boolean")
	}
	if _, _, err := run(t, provider, "config", "set", "minimum_stability", "nightly", "--config-dir", cfgDir); err == nil {
		t.Error("config set accepted an unknown stability")
	}

	stdout, _, err = run(t, provider, "config", "show", "--format", "json", "--config-dir", cfgDir, "-d", t.TempDir())
	if err != nil {
		t.Fatalf("config show error: %v", err)
	}
	if !strings.Contains(stdout, `"vendor_dir": "deps"`) {
		t.Errorf("config show:\n%s", stdout)
	}

	if _, _, err := run(t, provider, "config", "show", "--format", "ini", "--config-dir", cfgDir); err == nil {
		t.Error("config show accepted an unknown format")
	}
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	stdout, _, err := run(t, staticConfig{cfg: cliConfig(t)}, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(stdout, "pakt ") {
		t.Errorf("version output = %q", stdout)
	}
}
