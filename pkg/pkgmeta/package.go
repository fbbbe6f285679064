// SPDX-License-Identifier: MPL-2.0

package pkgmeta

import (
	"encoding/json"
	"maps"
	"slices"
	"strings"

	"github.com/pakt/pakt/pkg/version"
)

// VCS source types.
const (
	SourceGit  SourceType = "git"
	SourceHg   SourceType = "hg"
	SourceSvn  SourceType = "svn"
	SourceNone SourceType = "none"
)

// Installation sources recorded on installed packages.
const (
	InstalledFromSource InstallationSource = "source"
	InstalledFromDist   InstallationSource = "dist"
)

// Package types with special handling.
const (
	TypeLibrary     = "library"
	TypePlatform    = "platform"
	TypeMetapackage = "metapackage"
)

type (
	// SourceType identifies the version control system behind a Source.
	SourceType string

	// InstallationSource records whether a package was materialized from
	// its VCS source or its dist archive.
	InstallationSource string

	// Source points at a checkout target in a version control system.
	Source struct {
		Type      SourceType `json:"type"`
		URL       string     `json:"url"`
		Reference string     `json:"reference"`
	}

	// Dist points at a packaged archive of a version.
	Dist struct {
		Type      string `json:"type"`
		URL       string `json:"url"`
		Reference string `json:"reference,omitempty"`
		Shasum    string `json:"shasum,omitempty"`
	}

	// Link is a dependency edge from Source to Target.
	Link struct {
		Source           string
		Target           string
		Constraint       version.Constraint
		PrettyConstraint string
	}

	// Package is one version of one package.
	//
	// Packages are treated as immutable once a repository hands them out;
	// use Clone or WithSourceReference to derive modified copies.
	Package struct {
		Name               string
		PrettyName         string
		Version            version.Version
		Type               string
		Source             *Source
		Dist               *Dist
		Requires           []Link
		DevRequires        []Link
		InstallationSource InstallationSource
		Extra              map[string]json.RawMessage
	}
)

// IsValid reports whether t is a known source type.
func (t SourceType) IsValid() bool {
	switch t {
	case SourceGit, SourceHg, SourceSvn, SourceNone:
		return true
	default:
		return false
	}
}

// String returns the source type name.
func (t SourceType) String() string { return string(t) }

// String renders the link as written in a manifest.
func (l Link) String() string {
	return l.Source + " requires " + l.Target + " " + l.PrettyConstraint
}

// NormalizeName lowercases and trims a package name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// New creates a library package with the given name and version.
func New(name string, v version.Version) *Package {
	return &Package{
		Name:       NormalizeName(name),
		PrettyName: strings.TrimSpace(name),
		Version:    v,
		Type:       TypeLibrary,
	}
}

// String returns "name (version)".
func (p *Package) String() string {
	return p.PrettyName + " (" + p.Version.String() + ")"
}

// UniqueName identifies this exact version of the package.
func (p *Package) UniqueName() string {
	return p.Name + "-" + p.Version.Normalized
}

// PrettyVersion returns the version as written by the author.
func (p *Package) PrettyVersion() string { return p.Version.String() }

// IsPlatform reports whether the package describes the runtime platform
// rather than installable code.
func (p *Package) IsPlatform() bool { return p.Type == TypePlatform }

// IsMetapackage reports whether the package has no files of its own.
func (p *Package) IsMetapackage() bool { return p.Type == TypeMetapackage }

// SourceReference returns the VCS reference or "".
func (p *Package) SourceReference() string {
	if p.Source == nil {
		return ""
	}
	return p.Source.Reference
}

// DistReference returns the dist reference or "".
func (p *Package) DistReference() string {
	if p.Dist == nil {
		return ""
	}
	return p.Dist.Reference
}

// Links returns the requires, followed by dev requires when dev is set.
func (p *Package) Links(dev bool) []Link {
	out := slices.Clone(p.Requires)
	if dev {
		out = append(out, p.DevRequires...)
	}
	return out
}

// Clone returns a deep copy of p.
func (p *Package) Clone() *Package {
	if p == nil {
		return nil
	}
	cp := *p
	if p.Source != nil {
		src := *p.Source
		cp.Source = &src
	}
	if p.Dist != nil {
		dist := *p.Dist
		cp.Dist = &dist
	}
	cp.Requires = slices.Clone(p.Requires)
	cp.DevRequires = slices.Clone(p.DevRequires)
	if p.Extra != nil {
		cp.Extra = make(map[string]json.RawMessage, len(p.Extra))
		for k, v := range p.Extra {
			cp.Extra[k] = slices.Clone(v)
		}
	}
	return &cp
}

// WithSourceReference returns a clone whose source reference is ref. It is
// used when a dev branch is materialized by branch name instead of commit.
func (p *Package) WithSourceReference(ref string) *Package {
	cp := p.Clone()
	if cp.Source == nil {
		cp.Source = &Source{Type: SourceNone}
	}
	cp.Source.Reference = ref
	return cp
}

// WithInstallationSource returns a clone recording how it was installed.
func (p *Package) WithInstallationSource(s InstallationSource) *Package {
	cp := p.Clone()
	cp.InstallationSource = s
	return cp
}

// SameRelease reports whether p and o describe the same installed content:
// same name, version, references and installation source.
func (p *Package) SameRelease(o *Package) bool {
	if p == nil || o == nil {
		return p == o
	}
	return p.Name == o.Name &&
		p.Version.Normalized == o.Version.Normalized &&
		p.SourceReference() == o.SourceReference() &&
		p.DistReference() == o.DistReference()
}

// ExtraKeys returns the sorted keys of unrecognised record fields.
func (p *Package) ExtraKeys() []string {
	return slices.Sorted(maps.Keys(p.Extra))
}
