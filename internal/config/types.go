// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pakt/pakt/pkg/resolver"
	"github.com/pakt/pakt/pkg/version"
)

const (
	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"

	// RepositoryRegistry is an HTTP package registry.
	RepositoryRegistry RepositoryType = "registry"
	// RepositoryFilesystem is a JSON file of package metadata.
	RepositoryFilesystem RepositoryType = "filesystem"
	// RepositoryVCS is a git, hg or svn repository holding one package.
	RepositoryVCS RepositoryType = "vcs"

	defaultHTTPTimeout = "30s"
)

var (
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidStability is returned when a StabilityName is not recognized.
	ErrInvalidStability = errors.New("invalid stability")
	// ErrInvalidSelectionPolicy is returned when a SelectionPolicy is not recognized.
	ErrInvalidSelectionPolicy = errors.New("invalid selection policy")
	// ErrInvalidRepositoryEntry is the sentinel error wrapped by InvalidRepositoryEntryError.
	ErrInvalidRepositoryEntry = errors.New("invalid repository entry")
	// ErrInvalidTimeout is returned when a Timeout is not a positive duration.
	ErrInvalidTimeout = errors.New("invalid timeout")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// StabilityName is a stability as written in configuration, such as
	// "stable" or "beta".
	StabilityName string

	// SelectionPolicy names how candidates from several repositories are
	// ordered: "version-first" or "repository-first".
	SelectionPolicy string

	// RepositoryType is the kind of a configured repository.
	RepositoryType string

	// Timeout is a Go duration string such as "30s".
	Timeout string

	// InvalidValueError reports a single rejected configuration value. It
	// wraps the sentinel for the value's type.
	InvalidValueError struct {
		Field string
		Value string
		Err   error
	}

	// InvalidRepositoryEntryError is returned when a RepositoryEntry has invalid fields.
	// It wraps ErrInvalidRepositoryEntry for errors.Is() compatibility.
	InvalidRepositoryEntryError struct {
		Index       int
		FieldErrors []error
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// RepositoryEntry declares a repository consulted after the project's own.
	RepositoryEntry struct {
		Type RepositoryType `json:"type" mapstructure:"type"`
		URL  string         `json:"url" mapstructure:"url"`
		// Optional members are skipped when unreachable.
		Optional bool `json:"optional,omitempty" mapstructure:"optional"`
	}

	// Config holds the application configuration.
	Config struct {
		// VendorDir is where packages are installed, relative to the project.
		VendorDir string `json:"vendor_dir" mapstructure:"vendor_dir"`
		// CacheDir holds the registry metadata cache.
		CacheDir string `json:"cache_dir" mapstructure:"cache_dir"`
		// PreferSource installs from VCS checkouts when both sources exist.
		PreferSource     bool          `json:"prefer_source" mapstructure:"prefer_source"`
		MinimumStability StabilityName `json:"minimum_stability" mapstructure:"minimum_stability"`
		PreferStable     bool          `json:"prefer_stable" mapstructure:"prefer_stable"`
		// ContinueOnError keeps executing operations after one fails.
		ContinueOnError bool              `json:"continue_on_error" mapstructure:"continue_on_error"`
		SelectionPolicy SelectionPolicy   `json:"selection_policy" mapstructure:"selection_policy"`
		Repositories    []RepositoryEntry `json:"repositories,omitempty" mapstructure:"repositories"`
		// Platform lists the versions of platform packages (php, ext-json...).
		Platform map[string]string `json:"platform,omitempty" mapstructure:"platform"`
		// Notify sends install notifications to repositories that accept them.
		Notify bool       `json:"notify" mapstructure:"notify"`
		HTTP   HTTPConfig `json:"http" mapstructure:"http"`
		UI     UIConfig   `json:"ui" mapstructure:"ui"`
	}

	// HTTPConfig configures registry and archive downloads.
	HTTPConfig struct {
		Timeout Timeout `json:"timeout" mapstructure:"timeout"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// ColorScheme sets the color scheme
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
		// Verbose enables verbose output
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}
)

// Error implements the error interface.
func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("%s: %v %q", e.Field, e.Err, e.Value)
}

// Unwrap returns the sentinel for the rejected value.
func (e *InvalidValueError) Unwrap() error { return e.Err }

// String returns the string representation of the ColorScheme.
func (cs ColorScheme) String() string { return string(cs) }

// IsValid returns whether the ColorScheme is one of the defined schemes.
func (cs ColorScheme) IsValid() (bool, []error) {
	switch cs {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return true, nil
	default:
		return false, []error{&InvalidValueError{Field: "ui.color_scheme", Value: string(cs), Err: ErrInvalidColorScheme}}
	}
}

// Stability parses the name. An empty name is stable.
func (s StabilityName) Stability() (version.Stability, error) {
	if s == "" {
		return version.Stable, nil
	}
	return version.ParseStabilityName(string(s))
}

// IsValid returns whether the name is a known stability.
func (s StabilityName) IsValid() (bool, []error) {
	if _, err := s.Stability(); err != nil {
		return false, []error{&InvalidValueError{Field: "minimum_stability", Value: string(s), Err: ErrInvalidStability}}
	}
	return true, nil
}

// Selection parses the policy name.
func (p SelectionPolicy) Selection() (resolver.Selection, error) {
	return resolver.ParseSelection(string(p))
}

// IsValid returns whether the policy name is known.
func (p SelectionPolicy) IsValid() (bool, []error) {
	if _, err := p.Selection(); err != nil {
		return false, []error{&InvalidValueError{Field: "selection_policy", Value: string(p), Err: ErrInvalidSelectionPolicy}}
	}
	return true, nil
}

// Duration parses the timeout. An empty value is the 30s default.
func (t Timeout) Duration() (time.Duration, error) {
	raw := string(t)
	if raw == "" {
		raw = defaultHTTPTimeout
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("timeout must be positive, got %s", raw)
	}
	return d, nil
}

// IsValid returns whether the timeout is a positive duration.
func (t Timeout) IsValid() (bool, []error) {
	if _, err := t.Duration(); err != nil {
		return false, []error{&InvalidValueError{Field: "http.timeout", Value: string(t), Err: ErrInvalidTimeout}}
	}
	return true, nil
}

// IsValid returns whether the entry has a known type and a URL.
func (e RepositoryEntry) IsValid() (bool, []error) {
	var errs []error
	switch e.Type {
	case RepositoryRegistry, RepositoryFilesystem, RepositoryVCS:
	default:
		errs = append(errs, fmt.Errorf("unknown repository type %q", e.Type))
	}
	if strings.TrimSpace(e.URL) == "" {
		errs = append(errs, errors.New("repository url must be non-empty"))
	}
	if len(errs) > 0 {
		return false, errs
	}
	return true, nil
}

// Error implements the error interface for InvalidRepositoryEntryError.
func (e *InvalidRepositoryEntryError) Error() string {
	return fmt.Sprintf("repositories[%d]: %v", e.Index, errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidRepositoryEntry for errors.Is() compatibility.
func (e *InvalidRepositoryEntryError) Unwrap() error { return ErrInvalidRepositoryEntry }

// IsValid returns whether the Config has valid fields.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if strings.TrimSpace(c.VendorDir) == "" {
		errs = append(errs, &InvalidValueError{Field: "vendor_dir", Value: c.VendorDir, Err: errors.New("must be non-empty")})
	}
	if valid, fieldErrs := c.MinimumStability.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.SelectionPolicy.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	for i, entry := range c.Repositories {
		if valid, fieldErrs := entry.IsValid(); !valid {
			errs = append(errs, &InvalidRepositoryEntryError{Index: i, FieldErrors: fieldErrs})
		}
	}
	for name, v := range c.Platform {
		if _, err := version.Normalize(v); err != nil {
			errs = append(errs, fmt.Errorf("platform.%s: %w", name, err))
		}
	}
	if valid, fieldErrs := c.HTTP.Timeout.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.UI.ColorScheme.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, 0, len(e.FieldErrors))
	for _, err := range e.FieldErrors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		VendorDir:        "vendor",
		CacheDir:         DefaultCacheDir(os.Getenv),
		MinimumStability: "stable",
		SelectionPolicy:  SelectionPolicy(resolver.VersionFirst.String()),
		Notify:           true,
		HTTP:             HTTPConfig{Timeout: defaultHTTPTimeout},
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
		},
	}
}

// DefaultCacheDir returns $XDG_CACHE_HOME/pakt, falling back to
// $HOME/.cache/pakt.
func DefaultCacheDir(getenv func(string) string) string {
	if dir := getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, AppName)
	}
	if home := getenv("HOME"); home != "" {
		return filepath.Join(home, ".cache", AppName)
	}
	return filepath.Join(os.TempDir(), AppName+"-cache")
}
