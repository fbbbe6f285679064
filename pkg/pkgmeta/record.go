// SPDX-License-Identifier: MPL-2.0

package pkgmeta

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/pakt/pakt/pkg/version"
)

// recordKeys are the fields Record decodes itself; every other key is kept
// in Extra, compacted.
var recordKeys = []string{
	"name", "version", "version_normalized", "type", "source", "dist",
	"require", "require-dev", "installation-source",
}

// Record is the JSON wire form of a package, shared by registry indexes,
// local repository files and the installed-package file.
type Record struct {
	Name               string             `json:"name"`
	Version            string             `json:"version"`
	VersionNormalized  string             `json:"version_normalized,omitempty"`
	Type               string             `json:"type,omitempty"`
	Source             *Source            `json:"source,omitempty"`
	Dist               *Dist              `json:"dist,omitempty"`
	Require            map[string]string  `json:"require,omitempty"`
	RequireDev         map[string]string  `json:"require-dev,omitempty"`
	InstallationSource InstallationSource `json:"installation-source,omitempty"`

	// Extra holds fields pakt does not interpret (description, license,
	// autoload rules, ...). They survive a read/write cycle unchanged.
	Extra map[string]json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes known fields and keeps the rest in Extra.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	type plain Record
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = Record(p)

	for _, k := range recordKeys {
		delete(raw, k)
	}
	for k, v := range raw {
		var buf bytes.Buffer
		if err := json.Compact(&buf, v); err != nil {
			return fmt.Errorf("field %q: %w", k, err)
		}
		raw[k] = buf.Bytes()
	}
	if len(raw) > 0 {
		r.Extra = raw
	}
	return nil
}

// MarshalJSON encodes known fields and Extra with sorted keys.
func (r Record) MarshalJSON() ([]byte, error) {
	type plain Record
	known, err := json.Marshal(plain(r))
	if err != nil {
		return nil, err
	}
	if len(r.Extra) == 0 {
		return known, nil
	}

	merged := make(map[string]json.RawMessage, len(r.Extra)+len(recordKeys))
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}
	for k, v := range r.Extra {
		if slices.Contains(recordKeys, k) {
			continue
		}
		merged[k] = v
	}
	return json.Marshal(merged)
}

// FromRecord parses a record into a Package.
func FromRecord(r Record) (*Package, error) {
	if strings.TrimSpace(r.Name) == "" {
		return nil, fmt.Errorf("package record has no name")
	}
	v, err := version.Normalize(r.Version)
	if err != nil {
		return nil, fmt.Errorf("package %s: %w", r.Name, err)
	}
	if r.VersionNormalized != "" && r.VersionNormalized != v.Normalized {
		// A parseable stored normalization wins over the re-derived one.
		if stored, serr := version.Normalize(r.VersionNormalized); serr == nil {
			stored.Pretty = r.Version
			v = stored
		}
	}

	p := New(r.Name, v)
	if r.Type != "" {
		p.Type = r.Type
	}
	if r.Source != nil {
		src := *r.Source
		if src.Type == "" {
			src.Type = SourceNone
		}
		if !src.Type.IsValid() {
			return nil, fmt.Errorf("package %s: unknown source type %q", r.Name, src.Type)
		}
		p.Source = &src
	}
	if r.Dist != nil {
		dist := *r.Dist
		p.Dist = &dist
	}
	if p.Requires, err = parseLinks(p.Name, r.Require); err != nil {
		return nil, err
	}
	if p.DevRequires, err = parseLinks(p.Name, r.RequireDev); err != nil {
		return nil, err
	}
	p.InstallationSource = r.InstallationSource
	if len(r.Extra) > 0 {
		p.Extra = maps.Clone(r.Extra)
	}
	return p, nil
}

// Record converts p back to its wire form.
func (p *Package) Record() Record {
	r := Record{
		Name:               p.PrettyName,
		Version:            p.Version.String(),
		VersionNormalized:  p.Version.Normalized,
		Type:               p.Type,
		Require:            linkMap(p.Requires),
		RequireDev:         linkMap(p.DevRequires),
		InstallationSource: p.InstallationSource,
	}
	if r.Type == TypeLibrary {
		r.Type = ""
	}
	if p.Source != nil {
		src := *p.Source
		r.Source = &src
	}
	if p.Dist != nil {
		dist := *p.Dist
		r.Dist = &dist
	}
	if len(p.Extra) > 0 {
		r.Extra = make(map[string]json.RawMessage, len(p.Extra))
		for _, k := range p.ExtraKeys() {
			r.Extra[k] = slices.Clone(p.Extra[k])
		}
	}
	return r
}

// ParseLinks parses a name → constraint map into links from source, sorted
// by target name.
func ParseLinks(source string, reqs map[string]string) ([]Link, error) {
	return parseLinks(source, reqs)
}

func parseLinks(source string, reqs map[string]string) ([]Link, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	links := make([]Link, 0, len(reqs))
	for _, target := range slices.Sorted(maps.Keys(reqs)) {
		expr := reqs[target]
		c, err := version.ParseConstraints(expr)
		if err != nil {
			return nil, fmt.Errorf("%s requires %s: %w", source, target, err)
		}
		links = append(links, Link{
			Source:           source,
			Target:           NormalizeName(target),
			Constraint:       c,
			PrettyConstraint: expr,
		})
	}
	return links, nil
}

func linkMap(links []Link) map[string]string {
	if len(links) == 0 {
		return nil
	}
	out := make(map[string]string, len(links))
	for _, l := range links {
		out[l.Target] = l.PrettyConstraint
	}
	return out
}
