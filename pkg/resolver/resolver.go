// SPDX-License-Identifier: MPL-2.0

package resolver

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"maps"
	"math"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/pakt/pakt/pkg/pkgmeta"
	"github.com/pakt/pakt/pkg/repository"
	"github.com/pakt/pakt/pkg/version"
)

// installedPriority ranks installed-only candidates after every repository.
const installedPriority = math.MaxInt32

type (
	// CandidateSource yields packages together with their provenance.
	// repository.CompositeRepository implements it.
	CandidateSource interface {
		FindCandidates(ctx context.Context, name string, c version.Constraint) ([]repository.Candidate, error)
	}

	// Request describes one resolution.
	Request struct {
		// Root holds the root requirements, including require-dev links
		// when DevMode is set.
		Root             []pkgmeta.Link
		DevMode          bool
		MinimumStability version.Stability
		// StabilityFlags overrides MinimumStability per package name.
		StabilityFlags map[string]version.Stability
		PreferStable   bool
		// Installed is the currently installed set; may be nil.
		Installed repository.Repository
		// UpdateAll lets every installed package change. Otherwise only
		// names in UpdateAllowList may move away from the installed
		// release.
		UpdateAll       bool
		UpdateAllowList []string
	}

	// Options configures a Resolver.
	Options struct {
		Policy Policy
		Logger *log.Logger
	}

	// Resolver finds a consistent package set for a Request.
	Resolver struct {
		source CandidateSource
		policy Policy
		logger *log.Logger
	}

	// frame is one decision point on the choice stack.
	frame struct {
		name       string
		candidates []repository.Candidate
		next       int
		snapshot   *state
	}

	// search holds the per-Resolve bookkeeping.
	search struct {
		*Resolver
		req       Request
		rootNames map[string]bool
		known     map[string][]repository.Candidate
		installed map[string]*pkgmeta.Package
		stack     []*frame
		conflict  *UnsatisfiableConstraintsError
	}
)

// New returns a resolver reading candidates from source.
func New(source CandidateSource, opts Options) *Resolver {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Resolver{source: source, policy: opts.Policy, logger: logger}
}

// Resolve selects one version for every package reachable from the root
// requirements. On failure it returns an *UnsatisfiableConstraintsError
// describing the first conflict met on the most preferred branch.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Result, error) {
	for _, l := range req.Root {
		if l.Constraint == nil {
			return nil, fmt.Errorf("root requirement on %s has no constraint", l.Target)
		}
	}

	s := &search{
		Resolver:  r,
		req:       req,
		rootNames: make(map[string]bool, len(req.Root)),
		known:     make(map[string][]repository.Candidate),
		installed: make(map[string]*pkgmeta.Package),
	}

	root := slices.Clone(req.Root)
	slices.SortStableFunc(root, func(a, b pkgmeta.Link) int { return cmp.Compare(a.Target, b.Target) })
	st := newState()
	for _, l := range root {
		s.rootNames[l.Target] = true
		st.require(Requirement{Chain: []string{"root"}, Link: l})
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name, ok := st.pop()
		if !ok {
			break
		}
		if _, done := st.selected[name]; done {
			continue
		}

		cands, err := s.candidates(ctx, name, st)
		if err != nil {
			return nil, err
		}
		if len(cands) == 0 {
			s.fail(ctx, name, st)
			if st, ok = s.backtrack(ctx); !ok {
				return nil, s.conflict
			}
			continue
		}

		f := &frame{name: name, candidates: cands, snapshot: st.clone()}
		s.stack = append(s.stack, f)
		if next, ok := s.advance(ctx, f); ok {
			st = next
			continue
		}
		if st, ok = s.backtrack(ctx); !ok {
			return nil, s.conflict
		}
	}

	res := &Result{root: root, selected: st.selected}
	if err := res.Verify(); err != nil {
		return nil, fmt.Errorf("resolution produced an inconsistent set: %w", err)
	}
	r.logger.Debug("resolved", "packages", len(res.selected), "decisions", len(s.stack))
	return res, nil
}

// advance tries the remaining candidates of f in order and returns the
// state after the first one whose requirements do not clash with an
// existing selection.
func (s *search) advance(ctx context.Context, f *frame) (*state, bool) {
	for f.next < len(f.candidates) {
		cand := f.candidates[f.next]
		f.next++
		st := f.snapshot.clone()
		if clash, ok := st.choose(cand); !ok {
			s.logger.Debug("candidate conflicts", "package", cand.Package.Name, "version", cand.Package.PrettyVersion(), "with", clash)
			s.fail(ctx, clash, st)
			continue
		}
		s.logger.Debug("selected", "package", cand.Package.Name, "version", cand.Package.PrettyVersion(), "repository", cand.OriginName())
		return st, true
	}
	return nil, false
}

// backtrack unwinds the stack to the nearest frame with an untried
// candidate.
func (s *search) backtrack(ctx context.Context) (*state, bool) {
	for len(s.stack) > 0 {
		top := s.stack[len(s.stack)-1]
		if st, ok := s.advance(ctx, top); ok {
			return st, true
		}
		s.logger.Debug("exhausted", "package", top.name)
		s.stack = s.stack[:len(s.stack)-1]
	}
	return nil, false
}

// fail records the first conflict of the search.
func (s *search) fail(ctx context.Context, name string, st *state) {
	if s.conflict != nil {
		return
	}
	missing := len(s.known[name]) == 0 && s.installed[name] == nil
	if _, selected := st.selected[name]; selected {
		missing = false
	}
	s.conflict = &UnsatisfiableConstraintsError{
		Package:      name,
		Requirements: slices.Clone(st.reqs[name]),
		Missing:      missing,
	}
	if missing && s.rootNames[name] {
		if l, ok := s.source.(repository.Lister); ok {
			s.conflict.Suggestions = repository.Suggest(ctx, l, name, 3)
		}
	}
}

// lookup queries the source once per name and remembers the installed
// release, if any.
func (s *search) lookup(ctx context.Context, name string) ([]repository.Candidate, error) {
	if cands, ok := s.known[name]; ok {
		return cands, nil
	}
	cands, err := s.source.FindCandidates(ctx, name, nil)
	if err != nil {
		return nil, err
	}
	if s.req.Installed != nil {
		inst, err := s.req.Installed.FindPackages(ctx, name, nil)
		if err != nil {
			return nil, err
		}
		if len(inst) > 0 {
			s.installed[name] = inst[len(inst)-1]
		}
	}
	if cands == nil {
		cands = []repository.Candidate{}
	}
	s.known[name] = cands
	return cands, nil
}

// candidates returns the acceptable candidates for name in try order.
func (s *search) candidates(ctx context.Context, name string, st *state) ([]repository.Candidate, error) {
	raw, err := s.lookup(ctx, name)
	if err != nil {
		return nil, err
	}

	floor := s.req.MinimumStability
	if f, ok := s.req.StabilityFlags[name]; ok {
		floor = f
	}
	acceptable := func(p *pkgmeta.Package) bool {
		if !p.IsPlatform() && !s.policy.Stability.Allows(floor, p.Version.Stability()) {
			return false
		}
		for _, r := range st.reqs[name] {
			if !r.Link.Constraint.Matches(p.Version) {
				return false
			}
		}
		return true
	}

	var out []repository.Candidate
	for _, c := range raw {
		if acceptable(c.Package) {
			out = append(out, c)
		}
	}

	inst := s.installed[name]
	instOK := inst != nil && acceptable(inst)
	instCand := repository.Candidate{Package: inst, Origin: s.req.Installed, Priority: installedPriority}
	if instOK && !slices.ContainsFunc(out, func(c repository.Candidate) bool {
		return c.Package.UniqueName() == inst.UniqueName()
	}) {
		out = append(out, instCand)
	}
	out = s.order(out)

	if instOK && s.keepInstalled(name) {
		pick := instCand
		if i := slices.IndexFunc(out, func(c repository.Candidate) bool { return c.Package.SameRelease(inst) }); i >= 0 {
			pick = out[i]
		}
		out = slices.DeleteFunc(out, func(c repository.Candidate) bool {
			return c.Package.UniqueName() == inst.UniqueName()
		})
		out = append([]repository.Candidate{pick}, out...)
	}
	return out, nil
}

// order sorts candidates by policy and drops duplicate releases.
func (s *search) order(cands []repository.Candidate) []repository.Candidate {
	slices.SortStableFunc(cands, func(a, b repository.Candidate) int {
		if s.req.PreferStable {
			ra := s.policy.Stability.Rank(a.Package.Version.Stability())
			rb := s.policy.Stability.Rank(b.Package.Version.Stability())
			if c := cmp.Compare(ra, rb); c != 0 {
				return c
			}
		}
		if c := version.Compare(b.Package.Version, a.Package.Version); c != 0 {
			return c
		}
		return cmp.Compare(a.Priority, b.Priority)
	})

	seen := make(map[string]bool, len(cands))
	out := cands[:0]
	for _, c := range cands {
		if seen[c.Package.UniqueName()] {
			continue
		}
		seen[c.Package.UniqueName()] = true
		out = append(out, c)
	}

	if s.policy.Selection == RepositoryFirst && len(out) > 0 {
		best := out[0].Priority
		for _, c := range out {
			best = min(best, c.Priority)
		}
		out = slices.DeleteFunc(out, func(c repository.Candidate) bool { return c.Priority != best })
	}
	return out
}

func (s *search) keepInstalled(name string) bool {
	return !s.req.UpdateAll && !slices.Contains(s.req.UpdateAllowList, name)
}

// state is the mutable part of the search that frames snapshot.
type state struct {
	selected map[string]repository.Candidate
	reqs     map[string][]Requirement
	queue    []string
	queued   map[string]bool
}

func newState() *state {
	return &state{
		selected: make(map[string]repository.Candidate),
		reqs:     make(map[string][]Requirement),
		queued:   make(map[string]bool),
	}
}

func (st *state) clone() *state {
	reqs := make(map[string][]Requirement, len(st.reqs))
	for k, v := range st.reqs {
		reqs[k] = slices.Clone(v)
	}
	return &state{
		selected: maps.Clone(st.selected),
		reqs:     reqs,
		queue:    slices.Clone(st.queue),
		queued:   maps.Clone(st.queued),
	}
}

func (st *state) pop() (string, bool) {
	if len(st.queue) == 0 {
		return "", false
	}
	name := st.queue[0]
	st.queue = st.queue[1:]
	return name, true
}

func (st *state) require(r Requirement) {
	target := r.Link.Target
	st.reqs[target] = append(st.reqs[target], r)
	if !st.queued[target] {
		st.queued[target] = true
		st.queue = append(st.queue, target)
	}
}

// choose selects cand and merges its requirements. It returns the name of
// an already selected package that one of them rules out.
func (st *state) choose(cand repository.Candidate) (string, bool) {
	pkg := cand.Package
	st.selected[pkg.Name] = cand

	chain := []string{"root"}
	if reqs := st.reqs[pkg.Name]; len(reqs) > 0 {
		chain = reqs[0].Chain
	}
	chain = append(slices.Clone(chain), pkg.Name+" "+pkg.PrettyVersion())

	for _, l := range pkg.Requires {
		st.require(Requirement{Chain: chain, Link: l})
		if sel, ok := st.selected[l.Target]; ok && !l.Constraint.Matches(sel.Package.Version) {
			return l.Target, false
		}
	}
	return "", true
}
