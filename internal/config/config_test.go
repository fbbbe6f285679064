// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/pakt/pakt/internal/issue"
	"github.com/pakt/pakt/internal/testutil"
	"github.com/pakt/pakt/pkg/manifest"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	testutil.MustWriteFile(t, path, content)
	return path
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	if cfg.VendorDir != "vendor" {
		t.Errorf("expected default vendor dir to be vendor, got %s", cfg.VendorDir)
	}
	if cfg.MinimumStability != "stable" {
		t.Errorf("expected default minimum stability to be stable, got %s", cfg.MinimumStability)
	}
	if cfg.SelectionPolicy != "version-first" {
		t.Errorf("expected default selection policy to be version-first, got %s", cfg.SelectionPolicy)
	}
	if !cfg.Notify {
		t.Error("expected notify to be true by default")
	}
	if cfg.PreferSource || cfg.PreferStable || cfg.ContinueOnError {
		t.Error("expected prefer_source, prefer_stable and continue_on_error to be false by default")
	}
	if cfg.HTTP.Timeout != "30s" {
		t.Errorf("expected default timeout to be 30s, got %s", cfg.HTTP.Timeout)
	}
	if cfg.UI.ColorScheme != ColorSchemeAuto {
		t.Errorf("expected default color scheme to be auto, got %s", cfg.UI.ColorScheme)
	}
}

func TestConfigDir(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG lookup only applies on Linux")
	}

	restore := testutil.MustSetenv(t, "XDG_CONFIG_HOME", "/tmp/test-xdg-config")
	defer restore()

	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() returned error: %v", err)
	}
	if want := filepath.Join("/tmp/test-xdg-config", AppName); dir != want {
		t.Errorf("ConfigDir() = %s, want %s", dir, want)
	}
}

func TestConfigDir_HomeFallback(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG lookup only applies on Linux")
	}

	home := t.TempDir()
	defer testutil.MustSetenv(t, "XDG_CONFIG_HOME", "")()
	defer testutil.SetHomeDir(t, home)()

	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() returned error: %v", err)
	}
	if want := filepath.Join(home, ".config", AppName); dir != want {
		t.Errorf("ConfigDir() = %s, want %s", dir, want)
	}
}

func TestConfigDirOverride(t *testing.T) {
	SetConfigDirOverride("/override")
	defer Reset()

	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() returned error: %v", err)
	}
	if dir != "/override" {
		t.Errorf("ConfigDir() = %s, want /override", dir)
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConfig(t, dir, `
vendor_dir: "lib"
minimum_stability: "beta"
selection_policy: "repository-first"
repositories: [
	{type: "vcs", url: "https://example.com/acme/widgets.git"},
	{type: "registry", url: "https://mirror.example.com", optional: true},
]
platform: {php: "8.3.1"}
http: timeout: "10s"
ui: verbose: true
`)

	loaded, err := LoadWithPath(t.Context(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("LoadWithPath() error: %v", err)
	}
	cfg := loaded.Config

	if loaded.Path != filepath.Join(dir, "config.cue") {
		t.Errorf("Path = %q", loaded.Path)
	}
	if cfg.VendorDir != "lib" || cfg.MinimumStability != "beta" || cfg.SelectionPolicy != "repository-first" {
		t.Errorf("scalar fields not loaded: %+v", cfg)
	}
	if len(cfg.Repositories) != 2 || cfg.Repositories[0].Type != RepositoryVCS || !cfg.Repositories[1].Optional {
		t.Errorf("repositories = %+v", cfg.Repositories)
	}
	if cfg.Platform["php"] != "8.3.1" {
		t.Errorf("platform = %v", cfg.Platform)
	}
	if cfg.HTTP.Timeout != "10s" || !cfg.UI.Verbose {
		t.Errorf("nested fields not loaded: %+v %+v", cfg.HTTP, cfg.UI)
	}
	// Unset fields keep their defaults.
	if !cfg.Notify || cfg.UI.ColorScheme != ColorSchemeAuto {
		t.Errorf("defaults lost: notify=%v color=%s", cfg.Notify, cfg.UI.ColorScheme)
	}
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Parallel()

	loaded, err := LoadWithPath(t.Context(), LoadOptions{ConfigDirPath: t.TempDir()})
	if err != nil {
		t.Fatalf("LoadWithPath() error: %v", err)
	}
	if loaded.Path != "" {
		t.Errorf("Path = %q, want empty", loaded.Path)
	}
	if loaded.Config.VendorDir != "vendor" || loaded.Config.Platform == nil {
		t.Errorf("unexpected config: %+v", loaded.Config)
	}
}

func TestLoad_BaseDirFallback(t *testing.T) {
	t.Parallel()

	project := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(project, "pakt.cue"), `prefer_source: true`)

	cfg, err := NewProvider().Load(t.Context(), LoadOptions{ConfigDirPath: t.TempDir(), BaseDir: project})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.PreferSource {
		t.Error("expected prefer_source from the project directory file")
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	t.Run("missing explicit file", func(t *testing.T) {
		t.Parallel()
		_, err := NewProvider().Load(t.Context(), LoadOptions{ConfigFilePath: filepath.Join(t.TempDir(), "nope.cue")})
		var ae *issue.ActionableError
		if !errors.As(err, &ae) {
			t.Fatalf("expected *issue.ActionableError, got %T: %v", err, err)
		}
		if !ae.HasSuggestions() {
			t.Error("expected suggestions")
		}
	})

	t.Run("schema violation", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, t.TempDir(), `selection_policy: "newest"`)
		_, err := NewProvider().Load(t.Context(), LoadOptions{ConfigFilePath: path})
		if err == nil {
			t.Fatal("expected an error")
		}
		if !strings.Contains(err.Error(), "selection_policy") {
			t.Errorf("error should name the field, got: %v", err)
		}
	})

	t.Run("invalid platform version", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, t.TempDir(), `platform: {php: "eight"}`)
		_, err := NewProvider().Load(t.Context(), LoadOptions{ConfigFilePath: path})
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got: %v", err)
		}
	})

	t.Run("canceled", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		if _, err := NewProvider().Load(ctx, LoadOptions{}); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got: %v", err)
		}
	})
}

func TestCreateDefaultConfig(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "pakt")
	path, err := CreateDefaultConfig(dir)
	if err != nil {
		t.Fatalf("CreateDefaultConfig() error: %v", err)
	}

	// The generated file must load back to the defaults.
	cfg, err := NewProvider().Load(t.Context(), LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("generated config does not load: %v", err)
	}
	if cfg.VendorDir != "vendor" || cfg.HTTP.Timeout != "30s" {
		t.Errorf("unexpected config: %+v", cfg)
	}

	// An existing file is left alone.
	testutil.MustWriteFile(t, path, `vendor_dir: "mine"`)
	if _, err := CreateDefaultConfig(dir); err != nil {
		t.Fatalf("CreateDefaultConfig() second call error: %v", err)
	}
	if got := testutil.MustReadFile(t, path); got != `vendor_dir: "mine"` {
		t.Errorf("existing config overwritten: %q", got)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Repositories = []RepositoryEntry{{Type: RepositoryFilesystem, URL: "packages.json", Optional: true}}
	cfg.Platform = map[string]string{"php": "8.2.0", "ext-json": "1.0.0"}
	if err := Save(dir, cfg); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	got, err := NewProvider().Load(t.Context(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(got.Repositories) != 1 || got.Repositories[0] != cfg.Repositories[0] {
		t.Errorf("repositories = %+v", got.Repositories)
	}
	if got.Platform["ext-json"] != "1.0.0" {
		t.Errorf("platform = %v", got.Platform)
	}
}

func TestWithProject(t *testing.T) {
	t.Parallel()

	yes := true
	cfg := DefaultConfig().WithProject(manifest.Config{VendorDir: "deps", PreferSource: &yes})
	if cfg.VendorDir != "deps" || !cfg.PreferSource {
		t.Errorf("project settings not applied: %+v", cfg)
	}

	cfg = DefaultConfig().WithProject(manifest.Config{})
	if cfg.VendorDir != "vendor" || cfg.PreferSource {
		t.Errorf("empty project block changed config: %+v", cfg)
	}
}

func TestRender(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.CacheDir = "/cache"
	cfg.Repositories = []RepositoryEntry{{Type: RepositoryVCS, URL: "https://example.com/r.git"}}

	tests := []struct {
		format Format
		want   []string
	}{
		{FormatCUE, []string{`vendor_dir: "vendor"`, `{type: "vcs", url: "https://example.com/r.git"}`}},
		{FormatJSON, []string{`"vendor_dir": "vendor"`, `"timeout": "30s"`}},
		{FormatTOML, []string{`vendor_dir = 'vendor'`, `[http]`, `repositories`}},
		{FormatYAML, []string{"vendor_dir: vendor", "http:\n    timeout: 30s", "- type: vcs"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			t.Parallel()
			out, err := Render(cfg, tt.format)
			if err != nil {
				t.Fatalf("Render() error: %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(string(out), w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Format{"": FormatCUE, "TOML": FormatTOML, "yml": FormatYAML, "json": FormatJSON} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseFormat("ini"); err == nil {
		t.Error("ParseFormat(ini) should fail")
	}
}
