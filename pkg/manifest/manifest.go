// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/pakt/pakt/internal/cueutil"
	"github.com/pakt/pakt/pkg/pkgmeta"
	"github.com/pakt/pakt/pkg/version"
)

// FileName is the manifest file name.
const FileName = "pakt.json"

// Repository types accepted in the repositories list.
const (
	RepositoryRegistry   = "registry"
	RepositoryFilesystem = "filesystem"
	RepositoryVCS        = "vcs"
)

var (
	//go:embed manifest_schema.cue
	schema []byte

	namePattern = regexp.MustCompile(`^[a-z0-9_.-]+/[a-z0-9_.-]+$`)

	// ErrManifestNotFound is returned by Load when the file does not exist.
	ErrManifestNotFound = errors.New("manifest not found")
	// ErrInvalidName is returned for package names outside vendor/name form.
	ErrInvalidName = errors.New("invalid package name")
)

type (
	// RepositoryConfig declares one package source.
	RepositoryConfig struct {
		Type     string `json:"type"`
		URL      string `json:"url"`
		Optional bool   `json:"optional,omitempty"`
	}

	// Script is a command run on an installer event. Matcher, when set, is
	// a regular expression the package name must match.
	Script struct {
		Command string `json:"command"`
		Matcher string `json:"matcher,omitempty"`
	}

	// Config is the manifest's config block.
	Config struct {
		VendorDir    string `json:"vendor-dir,omitempty"`
		PreferSource *bool  `json:"prefer-source,omitempty"`
	}

	// Manifest is a parsed pakt.json.
	Manifest struct {
		Name             string              `json:"name,omitempty"`
		Description      string              `json:"description,omitempty"`
		Type             string              `json:"type,omitempty"`
		Version          string              `json:"version,omitempty"`
		Require          map[string]string   `json:"require,omitempty"`
		RequireDev       map[string]string   `json:"require-dev,omitempty"`
		MinimumStability string              `json:"minimum-stability,omitempty"`
		PreferStable     *bool               `json:"prefer-stable,omitempty"`
		Repositories     []RepositoryConfig  `json:"repositories,omitempty"`
		Scripts          map[string][]Script `json:"scripts,omitempty"`
		Config           Config              `json:"config"`

		// Path is the file the manifest was read from.
		Path string `json:"-"`
	}

	// RootRequirements are the parsed root links of a manifest.
	RootRequirements struct {
		Links []pkgmeta.Link
		// StabilityFlags holds per-package minimum stabilities from
		// "@flag" suffixes and explicit dev versions.
		StabilityFlags map[string]version.Stability
	}
)

// Load reads and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, path)
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := Parse(data, filepath.Base(path))
	if err != nil {
		return nil, err
	}
	m.Path = path
	return m, nil
}

// LoadDir reads dir/pakt.json.
func LoadDir(dir string) (*Manifest, error) {
	return Load(filepath.Join(dir, FileName))
}

// Parse validates data against the manifest schema and decodes it.
func Parse(data []byte, filename string) (*Manifest, error) {
	res, err := cueutil.ParseAndDecode[Manifest](schema, data, "#Manifest", cueutil.WithFilename(filename))
	if err != nil {
		return nil, err
	}
	m := res.Value
	if m.Name != "" {
		if err := ValidateName(m.Name); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ValidateName checks that name has the vendor/name form in lowercase.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q must match %s", ErrInvalidName, name, namePattern)
	}
	return nil
}

// MinimumStabilityLevel returns the parsed minimum-stability, stable when
// unset.
func (m *Manifest) MinimumStabilityLevel() (version.Stability, error) {
	if m.MinimumStability == "" {
		return version.Stable, nil
	}
	return version.ParseStabilityName(m.MinimumStability)
}

// RootName is the name used as the source of root links.
func (m *Manifest) RootName() string {
	if m.Name == "" {
		return "__root__"
	}
	return m.Name
}

// RootLinks parses require, plus require-dev when dev is set, into links
// sorted by target. A package listed in both uses the require entry.
func (m *Manifest) RootLinks(dev bool) (RootRequirements, error) {
	reqs := maps.Clone(m.Require)
	if reqs == nil {
		reqs = map[string]string{}
	}
	if dev {
		for name, c := range m.RequireDev {
			if _, ok := reqs[name]; !ok {
				reqs[name] = c
			}
		}
	}

	out := RootRequirements{StabilityFlags: map[string]version.Stability{}}
	for _, name := range slices.Sorted(maps.Keys(reqs)) {
		expr := reqs[name]
		links, err := pkgmeta.ParseLinks(m.RootName(), map[string]string{name: expr})
		if err != nil {
			return RootRequirements{}, err
		}
		out.Links = append(out.Links, links...)
		if s, ok := ConstraintStability(expr); ok {
			out.StabilityFlags[pkgmeta.NormalizeName(name)] = s
		}
	}
	return out, nil
}

// ConstraintStability returns the stability a constraint asks for
// explicitly, either through an "@flag" or by naming a non-stable version.
func ConstraintStability(expr string) (version.Stability, bool) {
	if _, flag, ok := version.ExtractStabilityFlag(expr); ok {
		return flag, true
	}
	lowest := version.Stable
	found := false
	for _, part := range strings.FieldsFunc(expr, func(r rune) bool { return r == ' ' || r == ',' || r == '|' }) {
		part = strings.TrimLeft(part, "<>=!~^")
		if part == "" {
			continue
		}
		s := version.ParseStability(part)
		if s != version.Stable && (!found || s > lowest) {
			lowest = s
			found = true
		}
	}
	return lowest, found
}
