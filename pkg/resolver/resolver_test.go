// SPDX-License-Identifier: MPL-2.0

package resolver

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/pakt/pakt/pkg/pkgmeta"
	"github.com/pakt/pakt/pkg/repository"
	"github.com/pakt/pakt/pkg/version"
)

func pkg(t *testing.T, name, ver string, requires ...string) *pkgmeta.Package {
	t.Helper()
	reqs := make(map[string]string)
	for _, r := range requires {
		target, constraint, ok := strings.Cut(r, " ")
		if !ok {
			t.Fatalf("bad requirement %q", r)
		}
		reqs[target] = constraint
	}
	p, err := pkgmeta.FromRecord(pkgmeta.Record{Name: name, Version: ver, Require: reqs})
	if err != nil {
		t.Fatalf("FromRecord(%s %s) error = %v", name, ver, err)
	}
	return p
}

func rootLinks(t *testing.T, reqs map[string]string) []pkgmeta.Link {
	t.Helper()
	links, err := pkgmeta.ParseLinks("root", reqs)
	if err != nil {
		t.Fatalf("ParseLinks() error = %v", err)
	}
	return links
}

func composite(repos ...repository.Repository) *repository.CompositeRepository {
	members := make([]repository.Member, 0, len(repos))
	for _, r := range repos {
		members = append(members, repository.Member{Repository: r})
	}
	return repository.NewCompositeRepository(nil, members...)
}

func selectedVersions(res *Result) map[string]string {
	out := make(map[string]string, res.Len())
	for _, p := range res.Packages() {
		out[p.Name] = p.PrettyVersion()
	}
	return out
}

func TestResolve_SelectsHighestMatching(t *testing.T) {
	t.Parallel()

	repo := repository.NewArrayRepository("main",
		pkg(t, "a/pkg", "1.0.0"),
		pkg(t, "a/pkg", "1.2.0"),
		pkg(t, "a/pkg", "2.0.0"),
	)
	res, err := New(composite(repo), Options{}).Resolve(context.Background(), Request{
		Root: rootLinks(t, map[string]string{"a/pkg": "^1.0"}),
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got := res.Package("a/pkg").PrettyVersion(); got != "1.2.0" {
		t.Errorf("a/pkg = %s, want 1.2.0", got)
	}
	if names := res.Names(); len(names) != 1 {
		t.Errorf("Names() = %v", names)
	}
}

func TestResolve_UnsatisfiableNamesConflict(t *testing.T) {
	t.Parallel()

	repo := repository.NewArrayRepository("main",
		pkg(t, "a/pkg", "1.0.0"),
		pkg(t, "a/pkg", "1.2.0"),
		pkg(t, "a/pkg", "2.0.0"),
		pkg(t, "b/pkg", "1.0", "a/pkg ^2.0"),
	)
	res, err := New(composite(repo), Options{}).Resolve(context.Background(), Request{
		Root: rootLinks(t, map[string]string{"a/pkg": "^1.0", "b/pkg": "*"}),
	})
	if res != nil {
		t.Fatalf("Resolve() returned a result: %v", selectedVersions(res))
	}
	if !errors.Is(err, ErrUnsatisfiableConstraints) {
		t.Fatalf("Resolve() error = %v, want ErrUnsatisfiableConstraints", err)
	}

	var ue *UnsatisfiableConstraintsError
	if !errors.As(err, &ue) {
		t.Fatalf("error %T is not *UnsatisfiableConstraintsError", err)
	}
	if ue.Package != "a/pkg" {
		t.Errorf("conflict package = %q, want a/pkg", ue.Package)
	}
	if ue.Missing {
		t.Error("Missing set for a known package")
	}
	msg := err.Error()
	for _, want := range []string{"root requires a/pkg ^1.0", "root → b/pkg 1.0 requires a/pkg ^2.0"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q does not mention %q", msg, want)
		}
	}
}

func TestResolve_Backtracks(t *testing.T) {
	t.Parallel()

	repo := repository.NewArrayRepository("main",
		pkg(t, "a/a", "1.0.0", "c/c ^1.0"),
		pkg(t, "a/a", "2.0.0", "c/c ^2.0"),
		pkg(t, "b/b", "1.0.0", "c/c ^1.0"),
		pkg(t, "c/c", "1.0.0"),
		pkg(t, "c/c", "2.0.0"),
	)
	res, err := New(composite(repo), Options{}).Resolve(context.Background(), Request{
		Root: rootLinks(t, map[string]string{"a/a": "*", "b/b": "*"}),
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	want := map[string]string{"a/a": "1.0.0", "b/b": "1.0.0", "c/c": "1.0.0"}
	if got := selectedVersions(res); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("selection = %v, want %v", got, want)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	t.Parallel()

	build := func() *repository.CompositeRepository {
		first := repository.NewArrayRepository("first",
			pkg(t, "a/a", "1.0.0", "c/c ~1.0"),
			pkg(t, "a/a", "1.1.0", "c/c >=1.1"),
			pkg(t, "c/c", "1.0.5"),
		)
		second := repository.NewArrayRepository("second",
			pkg(t, "c/c", "1.1.0"),
			pkg(t, "c/c", "1.0.5"),
			pkg(t, "b/b", "0.3.0", "a/a ^1.0"),
		)
		return composite(first, second)
	}
	req := Request{Root: rootLinks(t, map[string]string{"b/b": "^0.3", "a/a": "*"})}

	var previous string
	for i := range 5 {
		res, err := New(build(), Options{}).Resolve(context.Background(), req)
		if err != nil {
			t.Fatalf("run %d: Resolve() error = %v", i, err)
		}
		var b strings.Builder
		for _, name := range res.Names() {
			c, _ := res.Candidate(name)
			fmt.Fprintf(&b, "%s@%s from %s;", name, c.Package.Version.Normalized, c.OriginName())
		}
		if i > 0 && b.String() != previous {
			t.Fatalf("run %d differs:\n%s\n%s", i, previous, b.String())
		}
		previous = b.String()
	}
	if !strings.Contains(previous, "c/c@1.1.0.0 from second") {
		t.Errorf("unexpected selection %s", previous)
	}
}

func TestResolve_StabilityFiltering(t *testing.T) {
	t.Parallel()

	repo := repository.NewArrayRepository("main",
		pkg(t, "a/a", "1.0.0"),
		pkg(t, "a/a", "1.1.0-beta2"),
		pkg(t, "a/a", "dev-main"),
	)
	root := rootLinks(t, map[string]string{"a/a": "*"})

	tests := []struct {
		name string
		req  Request
		want string
	}{
		{name: "stable floor", req: Request{Root: root, MinimumStability: version.Stable}, want: "1.0.0"},
		{name: "beta floor", req: Request{Root: root, MinimumStability: version.Beta}, want: "1.1.0-beta2"},
		{name: "per package flag", req: Request{Root: root, StabilityFlags: map[string]version.Stability{"a/a": version.Beta}}, want: "1.1.0-beta2"},
		{name: "prefer stable", req: Request{Root: root, MinimumStability: version.Dev, PreferStable: true}, want: "1.0.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res, err := New(composite(repo), Options{Policy: DefaultPolicy()}).Resolve(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got := res.Package("a/a").PrettyVersion(); got != tt.want {
				t.Errorf("a/a = %s, want %s", got, tt.want)
			}
		})
	}

	_, err := New(composite(repo), Options{}).Resolve(context.Background(), Request{
		Root: rootLinks(t, map[string]string{"a/a": "dev-main"}),
	})
	if !errors.Is(err, ErrUnsatisfiableConstraints) {
		t.Errorf("dev-main under stable floor: error = %v", err)
	}
	res, err := New(composite(repo), Options{}).Resolve(context.Background(), Request{
		Root:           rootLinks(t, map[string]string{"a/a": "dev-main"}),
		StabilityFlags: map[string]version.Stability{"a/a": version.Dev},
	})
	if err != nil || res.Package("a/a").PrettyVersion() != "dev-main" {
		t.Errorf("dev-main with @dev flag: res=%v err=%v", res, err)
	}
}

func TestResolve_InstalledPreference(t *testing.T) {
	t.Parallel()

	repo := repository.NewArrayRepository("main",
		pkg(t, "a/a", "1.0.0"),
		pkg(t, "a/a", "1.2.0"),
		pkg(t, "b/b", "1.0.0"),
		pkg(t, "b/b", "1.5.0"),
	)
	installedA := pkg(t, "a/a", "1.0.0")
	gone := pkg(t, "b/b", "1.1.0")
	installed := repository.NewArrayRepository("installed", installedA, gone)
	root := rootLinks(t, map[string]string{"a/a": "^1.0", "b/b": "^1.0"})

	tests := []struct {
		name  string
		req   Request
		wantA string
		wantB string
	}{
		{name: "install keeps installed", req: Request{Root: root, Installed: installed}, wantA: "1.0.0", wantB: "1.1.0"},
		{name: "update all", req: Request{Root: root, Installed: installed, UpdateAll: true}, wantA: "1.2.0", wantB: "1.5.0"},
		{name: "allow list", req: Request{Root: root, Installed: installed, UpdateAllowList: []string{"b/b"}}, wantA: "1.0.0", wantB: "1.5.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res, err := New(composite(repo), Options{}).Resolve(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			got := selectedVersions(res)
			if got["a/a"] != tt.wantA || got["b/b"] != tt.wantB {
				t.Errorf("selection = %v, want a/a %s b/b %s", got, tt.wantA, tt.wantB)
			}
		})
	}

	res, err := New(composite(repo), Options{}).Resolve(context.Background(), Request{Root: root, Installed: installed})
	if err != nil {
		t.Fatal(err)
	}
	if c, _ := res.Candidate("b/b"); c.Origin != repository.Repository(installed) {
		t.Errorf("installed-only release should come from the installed repository, got %s", c.OriginName())
	}
	if c, _ := res.Candidate("a/a"); c.OriginName() != "main" {
		t.Errorf("installed release offered by a repository should keep that origin, got %s", c.OriginName())
	}
}

func TestResolve_SelectionPolicy(t *testing.T) {
	t.Parallel()

	first := repository.NewArrayRepository("first", pkg(t, "a/a", "1.0.0"), pkg(t, "b/b", "1.0.0"))
	second := repository.NewArrayRepository("second", pkg(t, "a/a", "2.0.0"), pkg(t, "b/b", "1.0.0"))
	root := rootLinks(t, map[string]string{"a/a": "*", "b/b": "*"})

	tests := []struct {
		selection Selection
		wantA     string
		originA   string
	}{
		{selection: VersionFirst, wantA: "2.0.0", originA: "second"},
		{selection: RepositoryFirst, wantA: "1.0.0", originA: "first"},
	}
	for _, tt := range tests {
		t.Run(tt.selection.String(), func(t *testing.T) {
			t.Parallel()

			policy := Policy{Stability: version.DefaultStabilityOrder(), Selection: tt.selection}
			res, err := New(composite(first, second), Options{Policy: policy}).Resolve(context.Background(), Request{Root: root})
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			a, _ := res.Candidate("a/a")
			if a.Package.PrettyVersion() != tt.wantA || a.OriginName() != tt.originA {
				t.Errorf("a/a = %s from %s, want %s from %s", a.Package.PrettyVersion(), a.OriginName(), tt.wantA, tt.originA)
			}
			b, _ := res.Candidate("b/b")
			if b.OriginName() != "first" || b.Priority != 0 {
				t.Errorf("equal versions must prefer the earlier repository, got %s", b.OriginName())
			}
		})
	}
}

func TestParseSelection(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Selection{"": VersionFirst, "Version-First": VersionFirst, "repository-first": RepositoryFirst} {
		got, err := ParseSelection(in)
		if err != nil || got != want {
			t.Errorf("ParseSelection(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseSelection("random"); err == nil {
		t.Error("ParseSelection(random) should fail")
	}
}

func TestResolve_MissingPackage(t *testing.T) {
	t.Parallel()

	repo := repository.NewArrayRepository("main", pkg(t, "acme/widgets", "1.0.0"))
	_, err := New(composite(repo), Options{}).Resolve(context.Background(), Request{
		Root: rootLinks(t, map[string]string{"acme/widgts": "^1.0"}),
	})
	var ue *UnsatisfiableConstraintsError
	if !errors.As(err, &ue) {
		t.Fatalf("error = %v, want *UnsatisfiableConstraintsError", err)
	}
	if !ue.Missing || ue.Package != "acme/widgts" {
		t.Errorf("conflict = %+v", ue)
	}
	if len(ue.Suggestions) == 0 || ue.Suggestions[0] != "acme/widgets" {
		t.Errorf("Suggestions = %v", ue.Suggestions)
	}
	if !strings.Contains(err.Error(), "did you mean acme/widgets") {
		t.Errorf("error = %q", err)
	}
}

func TestResolve_PlatformPackages(t *testing.T) {
	t.Parallel()

	platform, err := repository.NewPlatformRepository(map[string]string{"php": "8.2.4"})
	if err != nil {
		t.Fatal(err)
	}
	repo := repository.NewArrayRepository("main",
		pkg(t, "a/a", "2.0.0", "php ^8.3"),
		pkg(t, "a/a", "1.0.0", "php >=8.0"),
	)
	res, err := New(composite(platform, repo), Options{}).Resolve(context.Background(), Request{
		Root: rootLinks(t, map[string]string{"a/a": "*"}),
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got := selectedVersions(res); got["a/a"] != "1.0.0" || got["php"] != "8.2.4" {
		t.Errorf("selection = %v", got)
	}
	if !res.Package("php").IsPlatform() {
		t.Error("php should be a platform package")
	}
}

type unreachable struct{}

func (unreachable) Name() string { return "down" }

func (unreachable) FindPackages(context.Context, string, version.Constraint) ([]*pkgmeta.Package, error) {
	return nil, &repository.UnavailableError{Repository: "down", Reason: "timeout"}
}

func TestResolve_Errors(t *testing.T) {
	t.Parallel()

	_, err := New(composite(unreachable{}), Options{}).Resolve(context.Background(), Request{
		Root: rootLinks(t, map[string]string{"a/a": "*"}),
	})
	if !errors.Is(err, repository.ErrRepositoryUnavailable) {
		t.Errorf("required repository failure: error = %v", err)
	}

	_, err = New(composite(), Options{}).Resolve(context.Background(), Request{
		Root: []pkgmeta.Link{{Source: "root", Target: "a/a"}},
	})
	if err == nil {
		t.Error("nil root constraint should fail")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New(composite(repository.NewArrayRepository("main", pkg(t, "a/a", "1.0.0"))), Options{}).Resolve(ctx, Request{
		Root: rootLinks(t, map[string]string{"a/a": "*"}),
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled context: error = %v", err)
	}
}

func TestResult_Verify(t *testing.T) {
	t.Parallel()

	a := pkg(t, "a/a", "1.0.0", "b/b ^2.0")
	b := pkg(t, "b/b", "1.0.0")
	res := NewResult(rootLinks(t, map[string]string{"a/a": "*"}),
		repository.Candidate{Package: a}, repository.Candidate{Package: b})
	if err := res.Verify(); !errors.Is(err, ErrUnsatisfiableConstraints) {
		t.Errorf("Verify() = %v, want violation", err)
	}

	res = NewResult(rootLinks(t, map[string]string{"c/c": "*"}))
	if err := res.Verify(); err == nil {
		t.Error("Verify() should report an unselected root requirement")
	}
}

// TestResolve_SoundOrFailing resolves randomly generated repositories and
// checks that every outcome is either a fully consistent set or an
// UnsatisfiableConstraints error.
func TestResolve_SoundOrFailing(t *testing.T) {
	t.Parallel()

	names := []string{"p/a", "p/b", "p/c", "p/d", "p/e"}
	constraints := []string{"^1.0", "^2.0", "~1.1", ">=1.2", "<2.0", "*", "1.0.*"}
	versions := []string{"1.0.0", "1.1.0", "1.2.3", "2.0.0", "2.1.0"}

	rng := rand.New(rand.NewPCG(7, 11))
	for iter := range 60 {
		var pkgs []*pkgmeta.Package
		for i, name := range names {
			for _, v := range versions {
				if rng.IntN(3) == 0 {
					continue
				}
				var reqs []string
				for _, dep := range names[i+1:] {
					if rng.IntN(3) == 0 {
						reqs = append(reqs, dep+" "+constraints[rng.IntN(len(constraints))])
					}
				}
				pkgs = append(pkgs, pkg(t, name, v, reqs...))
			}
		}
		repo := repository.NewArrayRepository("gen", pkgs...)
		root := rootLinks(t, map[string]string{
			names[0]: constraints[rng.IntN(len(constraints))],
			names[1]: constraints[rng.IntN(len(constraints))],
		})

		res, err := New(composite(repo), Options{}).Resolve(context.Background(), Request{Root: root})
		if err != nil {
			if !errors.Is(err, ErrUnsatisfiableConstraints) {
				t.Fatalf("iteration %d: unexpected error %v", iter, err)
			}
			continue
		}
		for _, l := range root {
			if p := res.Package(l.Target); p == nil || !l.Constraint.Matches(p.Version) {
				t.Fatalf("iteration %d: root requirement %s violated", iter, l)
			}
		}
		for _, p := range res.Packages() {
			for _, l := range p.Requires {
				dep := res.Package(l.Target)
				if dep == nil || !l.Constraint.Matches(dep.Version) {
					t.Fatalf("iteration %d: %s requirement %s violated", iter, p, l)
				}
			}
		}
	}
}
