// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"maps"
	"slices"

	"github.com/pakt/pakt/internal/dag"
	"github.com/pakt/pakt/pkg/pkgmeta"
	"github.com/pakt/pakt/pkg/resolver"
)

// SourceFunc returns the installation source a fresh install of a package
// would use, or "" when unknown.
type SourceFunc func(*pkgmeta.Package) pkgmeta.InstallationSource

// Plan diffs the resolved set against the installed packages. Removals come
// first in name order, then installs and updates with every package after
// the packages it requires. Dependency cycles are broken by name.
//
// sourceOf may be nil; when set, a package whose installation source would
// change (for example after switching to prefer-source) is updated even if
// its release is unchanged.
func Plan(installed []*pkgmeta.Package, result *resolver.Result, sourceOf SourceFunc) []Operation {
	current := make(map[string]*pkgmeta.Package, len(installed))
	for _, p := range installed {
		if p.IsPlatform() {
			continue
		}
		current[p.Name] = p
	}

	var ops []Operation
	for _, name := range slices.Sorted(maps.Keys(current)) {
		if result.Package(name) == nil {
			ops = append(ops, RemoveOperation{Initial: current[name]})
		}
	}

	for _, target := range dependencyOrder(result) {
		initial, ok := current[target.Name]
		switch {
		case !ok:
			ops = append(ops, InstallOperation{Target: target})
		case changed(initial, target, sourceOf):
			ops = append(ops, UpdateOperation{Initial: initial, Target: target})
		}
	}
	return ops
}

func changed(initial, target *pkgmeta.Package, sourceOf SourceFunc) bool {
	if !initial.SameRelease(target) {
		return true
	}
	if sourceOf == nil || initial.InstallationSource == "" {
		return false
	}
	want := target.InstallationSource
	if want == "" {
		want = sourceOf(target)
	}
	return want != "" && want != initial.InstallationSource
}

// dependencyOrder returns the non-platform packages of result, each after
// the packages it requires.
func dependencyOrder(result *resolver.Result) []*pkgmeta.Package {
	pkgs := make(map[string]*pkgmeta.Package)
	for _, p := range result.Packages() {
		if !p.IsPlatform() {
			pkgs[p.Name] = p
		}
	}

	g := dag.New()
	for name, p := range pkgs {
		g.AddNode(name)
		for _, l := range p.Requires {
			if _, ok := pkgs[l.Target]; ok && l.Target != name {
				g.AddEdge(l.Target, name)
			}
		}
	}

	order, _ := g.Order()
	out := make([]*pkgmeta.Package, 0, len(order))
	for _, name := range order {
		out = append(out, pkgs[name])
	}
	return out
}
