// SPDX-License-Identifier: MPL-2.0

package repository

import (
	"context"
	"errors"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/pakt/pakt/pkg/pkgmeta"
	"github.com/pakt/pakt/pkg/version"
)

type (
	// Member is one repository inside a CompositeRepository. Optional
	// members that are unavailable are skipped instead of failing queries.
	Member struct {
		Repository Repository
		Optional   bool
	}

	// CompositeRepository queries an ordered list of repositories and keeps
	// track of which member produced each package.
	CompositeRepository struct {
		members []Member
		logger  *log.Logger

		mu      sync.Mutex
		skipped map[string]bool
	}
)

// NewCompositeRepository combines members in priority order; the first
// member has priority 0. A nil logger discards warnings.
func NewCompositeRepository(logger *log.Logger, members ...Member) *CompositeRepository {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &CompositeRepository{
		members: slices.Clone(members),
		logger:  logger,
		skipped: make(map[string]bool),
	}
}

// Members returns the member list in priority order.
func (c *CompositeRepository) Members() []Member { return slices.Clone(c.members) }

// Name implements Repository.
func (c *CompositeRepository) Name() string {
	names := make([]string, 0, len(c.members))
	for _, m := range c.members {
		names = append(names, m.Repository.Name())
	}
	return "composite(" + strings.Join(names, ", ") + ")"
}

// FindCandidates queries every member concurrently and returns the matching
// packages with their provenance, concatenated in member order.
func (c *CompositeRepository) FindCandidates(ctx context.Context, name string, cons version.Constraint) ([]Candidate, error) {
	results := make([][]*pkgmeta.Package, len(c.members))

	g, gctx := errgroup.WithContext(ctx)
	for i, m := range c.members {
		g.Go(func() error {
			pkgs, err := m.Repository.FindPackages(gctx, name, cons)
			if err != nil {
				if c.skippable(m, err) {
					return nil
				}
				return err
			}
			results[i] = pkgs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Candidate
	for i, pkgs := range results {
		for _, p := range pkgs {
			out = append(out, Candidate{Package: p, Origin: c.members[i].Repository, Priority: i})
		}
	}
	return out, nil
}

// FindPackages implements Repository by flattening FindCandidates.
func (c *CompositeRepository) FindPackages(ctx context.Context, name string, cons version.Constraint) ([]*pkgmeta.Package, error) {
	cands, err := c.FindCandidates(ctx, name, cons)
	if err != nil {
		return nil, err
	}
	out := make([]*pkgmeta.Package, 0, len(cands))
	for _, cand := range cands {
		out = append(out, cand.Package)
	}
	return out, nil
}

// PackageNames implements Lister as the union of every listing member.
func (c *CompositeRepository) PackageNames(ctx context.Context) ([]string, error) {
	names := make(map[string]struct{})
	for _, m := range c.members {
		l, ok := m.Repository.(Lister)
		if !ok {
			continue
		}
		got, err := l.PackageNames(ctx)
		if err != nil {
			if c.skippable(m, err) {
				continue
			}
			return nil, err
		}
		for _, n := range got {
			names[n] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(names)), nil
}

// skippable reports whether err from m may be ignored, warning once per
// member.
func (c *CompositeRepository) skippable(m Member, err error) bool {
	if !m.Optional || !errors.Is(err, ErrRepositoryUnavailable) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	name := m.Repository.Name()
	if !c.skipped[name] {
		c.skipped[name] = true
		c.logger.Warn("skipping optional repository", "repository", name, "err", err)
	}
	return true
}
