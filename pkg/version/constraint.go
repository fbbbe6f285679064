// SPDX-License-Identifier: MPL-2.0

package version

import (
	"strings"
)

// Comparison operators.
const (
	OpEQ Operator = "=="
	OpNE Operator = "!="
	OpLT Operator = "<"
	OpLE Operator = "<="
	OpGT Operator = ">"
	OpGE Operator = ">="
)

type (
	// Operator is a binary version comparison.
	Operator string

	// Constraint is a predicate over versions.
	Constraint interface {
		// Matches reports whether v satisfies the constraint. It must be pure.
		Matches(v Version) bool
		// String renders the constraint for humans.
		String() string
	}

	// Single compares against one version bound.
	Single struct {
		Op      Operator
		Version Version
		Text    string
	}

	// MultiConstraint combines constraints as an intersection (Conjunctive)
	// or a union. An empty intersection matches everything; an empty union
	// matches nothing.
	MultiConstraint struct {
		Constraints []Constraint
		Conjunctive bool
		Text        string
	}

	// MatchAll matches every version.
	MatchAll struct{}

	// MatchNone matches no version.
	MatchNone struct{}
)

// NewSingle returns a Single constraint.
func NewSingle(op Operator, v Version) *Single {
	return &Single{Op: op, Version: v}
}

// Matches implements Constraint.
func (s *Single) Matches(v Version) bool {
	if v.IsBranch() || s.Version.IsBranch() {
		switch s.Op {
		case OpEQ:
			return v.Normalized == s.Version.Normalized
		case OpNE:
			return v.Normalized != s.Version.Normalized
		default:
			return false
		}
	}
	c := Compare(v, s.Version)
	switch s.Op {
	case OpEQ:
		return c == 0
	case OpNE:
		return c != 0
	case OpLT:
		return c < 0
	case OpLE:
		return c <= 0
	case OpGT:
		return c > 0
	case OpGE:
		return c >= 0
	default:
		return false
	}
}

// String implements Constraint.
func (s *Single) String() string {
	if s.Text != "" {
		return s.Text
	}
	return string(s.Op) + " " + s.Version.Normalized
}

// Matches implements Constraint.
func (m *MultiConstraint) Matches(v Version) bool {
	if m.Conjunctive {
		for _, c := range m.Constraints {
			if !c.Matches(v) {
				return false
			}
		}
		return true
	}
	for _, c := range m.Constraints {
		if c.Matches(v) {
			return true
		}
	}
	return false
}

// String implements Constraint.
func (m *MultiConstraint) String() string {
	if m.Text != "" {
		return m.Text
	}
	parts := make([]string, 0, len(m.Constraints))
	for _, c := range m.Constraints {
		parts = append(parts, c.String())
	}
	if m.Conjunctive {
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return "[" + strings.Join(parts, " || ") + "]"
}

// Matches implements Constraint.
func (MatchAll) Matches(Version) bool { return true }

// String implements Constraint.
func (MatchAll) String() string { return "*" }

// Matches implements Constraint.
func (MatchNone) Matches(Version) bool { return false }

// String implements Constraint.
func (MatchNone) String() string { return "<none>" }

// Intersect returns the conjunction of cs. MatchAll members are dropped,
// and the result collapses to MatchNone when a member is MatchNone or when
// the numeric bounds cannot overlap.
func Intersect(cs ...Constraint) Constraint {
	flat := make([]Constraint, 0, len(cs))
	for _, c := range cs {
		switch t := c.(type) {
		case nil, MatchAll, *MatchAll:
			continue
		case MatchNone, *MatchNone:
			return MatchNone{}
		case *MultiConstraint:
			if t.Conjunctive {
				inner := Intersect(t.Constraints...)
				if _, none := inner.(MatchNone); none {
					return MatchNone{}
				}
				if _, all := inner.(MatchAll); all {
					continue
				}
				if m, ok := inner.(*MultiConstraint); ok && m.Conjunctive {
					flat = append(flat, m.Constraints...)
					continue
				}
				flat = append(flat, inner)
				continue
			}
			if IsEmpty(t) {
				return MatchNone{}
			}
			flat = append(flat, t)
		default:
			flat = append(flat, c)
		}
	}
	switch len(flat) {
	case 0:
		return MatchAll{}
	case 1:
		return flat[0]
	}
	if boundsEmpty(flat) {
		return MatchNone{}
	}
	return &MultiConstraint{Constraints: flat, Conjunctive: true}
}

// Union returns the disjunction of cs.
func Union(cs ...Constraint) Constraint {
	flat := make([]Constraint, 0, len(cs))
	for _, c := range cs {
		switch c.(type) {
		case nil, MatchNone, *MatchNone:
			continue
		case MatchAll, *MatchAll:
			return MatchAll{}
		default:
			flat = append(flat, c)
		}
	}
	switch len(flat) {
	case 0:
		return MatchNone{}
	case 1:
		return flat[0]
	}
	return &MultiConstraint{Constraints: flat}
}

// IsEmpty reports whether c can never match.
func IsEmpty(c Constraint) bool {
	switch t := c.(type) {
	case MatchNone, *MatchNone:
		return true
	case *MultiConstraint:
		if t.Conjunctive {
			_, none := Intersect(t.Constraints...).(MatchNone)
			return none
		}
		for _, inner := range t.Constraints {
			if !IsEmpty(inner) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// boundsEmpty checks the numeric Single members of a conjunction for an
// empty range. Anything it cannot reason about is treated as non-empty.
func boundsEmpty(cs []Constraint) bool {
	var lower, upper *Single
	var equals []*Single
	for _, c := range cs {
		s, ok := c.(*Single)
		if !ok || s.Version.IsBranch() {
			continue
		}
		switch s.Op {
		case OpGT, OpGE:
			if lower == nil || tighterLower(s, lower) {
				lower = s
			}
		case OpLT, OpLE:
			if upper == nil || tighterUpper(s, upper) {
				upper = s
			}
		case OpEQ:
			equals = append(equals, s)
		}
	}
	for _, eq := range equals {
		for _, c := range cs {
			if !c.Matches(eq.Version) {
				return true
			}
		}
	}
	if lower == nil || upper == nil {
		return false
	}
	c := Compare(lower.Version, upper.Version)
	if c > 0 {
		return true
	}
	return c == 0 && (lower.Op == OpGT || upper.Op == OpLT)
}

func tighterLower(a, b *Single) bool {
	c := Compare(a.Version, b.Version)
	return c > 0 || (c == 0 && a.Op == OpGT)
}

func tighterUpper(a, b *Single) bool {
	c := Compare(a.Version, b.Version)
	return c < 0 || (c == 0 && a.Op == OpLT)
}
