// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/pakt/pakt/internal/testutil"
	"github.com/pakt/pakt/pkg/version"
)

const sample = `{
  "name": "acme/app",
  "description": "An app",
  "require": {"acme/widgets": "^1.0", "acme/edge": "dev-main", "acme/beta": "^2.0@beta", "php": ">=8.1"},
  "require-dev": {"acme/testkit": "~1.2", "acme/widgets": "^9.0"},
  "minimum-stability": "RC",
  "prefer-stable": true,
  "repositories": [
    {"type": "registry", "url": "https://packages.example.com"},
    {"type": "vcs", "url": "https://example.com/acme/edge.git", "optional": true}
  ],
  "config": {"vendor-dir": "lib", "prefer-source": true},
  "autoload": {"psr-4": {"Acme\\": "src/"}}
}`

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	testutil.MustWriteFile(t, path, content)
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	m, err := Load(writeManifest(t, sample))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if m.Name != "acme/app" || m.PreferStable == nil || !*m.PreferStable || m.Config.VendorDir != "lib" {
		t.Errorf("manifest = %+v", m)
	}
	if m.Config.PreferSource == nil || !*m.Config.PreferSource {
		t.Error("prefer-source not decoded")
	}
	if len(m.Repositories) != 2 || m.Repositories[1].Type != RepositoryVCS || !m.Repositories[1].Optional {
		t.Errorf("Repositories = %+v", m.Repositories)
	}
	s, err := m.MinimumStabilityLevel()
	if err != nil || s != version.RC {
		t.Errorf("MinimumStabilityLevel() = %v, %v", s, err)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	t.Run("missing", func(t *testing.T) {
		t.Parallel()

		_, err := Load(filepath.Join(t.TempDir(), FileName))
		if !errors.Is(err, ErrManifestNotFound) {
			t.Errorf("Load() error = %v, want ErrManifestNotFound", err)
		}
	})

	tests := []struct {
		name    string
		content string
		is      error
	}{
		{name: "malformed json", content: `{"name": `},
		{name: "unknown repository type", content: `{"repositories": [{"type": "ftp", "url": "x"}]}`},
		{name: "wrong type", content: `{"prefer-stable": "yes"}`},
		{name: "bad stability", content: `{"minimum-stability": "gamma"}`},
		{name: "uppercase name", content: `{"name": "Acme/App"}`, is: ErrInvalidName},
		{name: "name without vendor", content: `{"name": "app"}`, is: ErrInvalidName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Load(writeManifest(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("Load() error = %v, want %v", err, tt.is)
			}
		})
	}
}

func TestRootLinks(t *testing.T) {
	t.Parallel()

	m, err := Parse([]byte(sample), FileName)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	noDev, err := m.RootLinks(false)
	if err != nil {
		t.Fatalf("RootLinks(false) error = %v", err)
	}
	var names []string
	for _, l := range noDev.Links {
		names = append(names, l.Target)
		if l.Source != "acme/app" {
			t.Errorf("link source = %q", l.Source)
		}
	}
	want := []string{"acme/beta", "acme/edge", "acme/widgets", "php"}
	if len(names) != len(want) {
		t.Fatalf("targets = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("targets = %v, want %v", names, want)
		}
	}

	if got := noDev.StabilityFlags["acme/beta"]; got != version.Beta {
		t.Errorf("acme/beta flag = %v, want beta", got)
	}
	if got := noDev.StabilityFlags["acme/edge"]; got != version.Dev {
		t.Errorf("acme/edge flag = %v, want dev", got)
	}
	if _, ok := noDev.StabilityFlags["acme/widgets"]; ok {
		t.Error("acme/widgets should have no stability flag")
	}

	dev, err := m.RootLinks(true)
	if err != nil {
		t.Fatalf("RootLinks(true) error = %v", err)
	}
	if len(dev.Links) != 5 {
		t.Fatalf("dev links = %d, want 5", len(dev.Links))
	}
	for _, l := range dev.Links {
		if l.Target == "acme/widgets" && l.PrettyConstraint != "^1.0" {
			t.Errorf("require-dev overrode require: %s", l.PrettyConstraint)
		}
	}
}

func TestRootLinks_InvalidConstraint(t *testing.T) {
	t.Parallel()

	m := &Manifest{Require: map[string]string{"a/b": "^^1"}}
	if _, err := m.RootLinks(false); !errors.Is(err, version.ErrInvalidVersionFormat) {
		t.Errorf("RootLinks() error = %v, want ErrInvalidVersionFormat", err)
	}
	if m.RootName() != "__root__" {
		t.Errorf("RootName() = %q", m.RootName())
	}
}

func TestValidateName(t *testing.T) {
	t.Parallel()

	for _, ok := range []string{"acme/widgets", "a_b/c.d-e", "0/1"} {
		if err := ValidateName(ok); err != nil {
			t.Errorf("ValidateName(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"", "acme", "Acme/w", "a/b/c", "a /b"} {
		if err := ValidateName(bad); !errors.Is(err, ErrInvalidName) {
			t.Errorf("ValidateName(%q) = %v, want ErrInvalidName", bad, err)
		}
	}
}
