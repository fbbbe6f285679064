// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"testing"
	"time"
)

func TestColorScheme_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		scheme ColorScheme
		want   bool
	}{
		{ColorSchemeAuto, true},
		{ColorSchemeDark, true},
		{ColorSchemeLight, true},
		{"", false},
		{"AUTO", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.scheme), func(t *testing.T) {
			t.Parallel()
			isValid, errs := tt.scheme.IsValid()
			if isValid != tt.want {
				t.Errorf("ColorScheme(%q).IsValid() = %v, want %v", tt.scheme, isValid, tt.want)
			}
			if !tt.want && !errors.Is(errs[0], ErrInvalidColorScheme) {
				t.Errorf("error should wrap ErrInvalidColorScheme, got: %v", errs[0])
			}
		})
	}
}

func TestStabilityName(t *testing.T) {
	t.Parallel()

	for _, name := range []StabilityName{"", "stable", "RC", "beta", "Alpha", "dev"} {
		if ok, errs := name.IsValid(); !ok {
			t.Errorf("StabilityName(%q).IsValid() = false: %v", name, errs)
		}
	}
	ok, errs := StabilityName("gamma").IsValid()
	if ok || !errors.Is(errs[0], ErrInvalidStability) {
		t.Errorf("StabilityName(gamma).IsValid() = %v, %v; want ErrInvalidStability", ok, errs)
	}
}

func TestSelectionPolicy(t *testing.T) {
	t.Parallel()

	for _, p := range []SelectionPolicy{"", "version-first", "repository-first"} {
		if ok, _ := p.IsValid(); !ok {
			t.Errorf("SelectionPolicy(%q) should be valid", p)
		}
	}
	if ok, errs := SelectionPolicy("newest").IsValid(); ok || !errors.Is(errs[0], ErrInvalidSelectionPolicy) {
		t.Errorf("SelectionPolicy(newest) should wrap ErrInvalidSelectionPolicy, got %v", errs)
	}
}

func TestTimeout_Duration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      Timeout
		want    time.Duration
		wantErr bool
	}{
		{"", 30 * time.Second, false},
		{"5m", 5 * time.Minute, false},
		{"0s", 0, true},
		{"-1s", 0, true},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		got, err := tt.in.Duration()
		if (err != nil) != tt.wantErr {
			t.Errorf("Timeout(%q).Duration() error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("Timeout(%q).Duration() = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestConfig_IsValid(t *testing.T) {
	t.Parallel()

	if ok, errs := DefaultConfig().IsValid(); !ok {
		t.Fatalf("default config should be valid: %v", errs)
	}

	cfg := DefaultConfig()
	cfg.VendorDir = " "
	cfg.Repositories = []RepositoryEntry{{Type: "ftp", URL: ""}}
	cfg.Platform = map[string]string{"php": "not a version"}
	cfg.UI.ColorScheme = "blue"

	ok, errs := cfg.IsValid()
	if ok {
		t.Fatal("expected invalid config")
	}
	var cfgErr *InvalidConfigError
	if !errors.As(errs[0], &cfgErr) {
		t.Fatalf("expected *InvalidConfigError, got %T", errs[0])
	}
	if !errors.Is(errs[0], ErrInvalidConfig) {
		t.Error("error should wrap ErrInvalidConfig")
	}
	if len(cfgErr.FieldErrors) != 4 {
		t.Errorf("expected 4 field errors, got %d: %v", len(cfgErr.FieldErrors), cfgErr.FieldErrors)
	}

	var repoErr *InvalidRepositoryEntryError
	if !errors.As(cfgErr.FieldErrors[1], &repoErr) {
		t.Fatalf("expected *InvalidRepositoryEntryError, got %T", cfgErr.FieldErrors[1])
	}
	if len(repoErr.FieldErrors) != 2 {
		t.Errorf("expected type and url errors, got %v", repoErr.FieldErrors)
	}
}

func TestDefaultCacheDir(t *testing.T) {
	t.Parallel()

	env := func(vars map[string]string) func(string) string {
		return func(k string) string { return vars[k] }
	}
	if got := DefaultCacheDir(env(map[string]string{"XDG_CACHE_HOME": "/xdg", "HOME": "/home/u"})); got != "/xdg/pakt" {
		t.Errorf("DefaultCacheDir() = %q, want /xdg/pakt", got)
	}
	if got := DefaultCacheDir(env(map[string]string{"HOME": "/home/u"})); got != "/home/u/.cache/pakt" {
		t.Errorf("DefaultCacheDir() = %q, want /home/u/.cache/pakt", got)
	}
}
