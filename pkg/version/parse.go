// SPDX-License-Identifier: MPL-2.0

package version

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

var (
	stabilityFlagPattern = regexp.MustCompile(`(?i)^([^,\s]*?)@(stable|rc|beta|alpha|dev)$`)
	referencePattern     = regexp.MustCompile(`(?i)^(dev-[^,\s@]+?|[^,\s@]+?\.x-dev)#.+$`)
	orSplit              = regexp.MustCompile(`\s*\|\|?\s*`)
	andSplit             = regexp.MustCompile(`\s*,\s*|\s+`)
	operatorSpace        = regexp.MustCompile(`(<>|!=|>=|<=|==|[<>=~^])\s+`)
	hyphenRange          = regexp.MustCompile(`^(\S+)\s+-\s+(\S+)$`)
	wildcardAll          = regexp.MustCompile(`^[xX*](?:\.[xX*])*$`)
	tildePattern         = regexp.MustCompile(`(?i)^~>?v?(\d+)(?:\.(\d+))?(?:\.(\d+))?(?:\.(\d+))?` + modifierPattern + `$`)
	caretPattern         = regexp.MustCompile(`(?i)^\^v?(\d+)(?:\.(\d+))?(?:\.(\d+))?(?:\.(\d+))?` + modifierPattern + `$`)
	wildcardPattern      = regexp.MustCompile(`^v?(\d+)(?:\.(\d+))?(?:\.(\d+))?\.[xX*]$`)
	operatorPattern      = regexp.MustCompile(`^(<>|!=|>=?|<=?|==?)?\s*(.*)$`)
	partialPattern       = regexp.MustCompile(`^v?(\d+)(?:\.(\d+))?(?:\.(\d+))?$`)
)

// ExtractStabilityFlag strips a trailing "@stability" flag from a constraint
// expression. A bare flag ("@dev") leaves "*" as the remaining constraint.
func ExtractStabilityFlag(expr string) (rest string, flag Stability, ok bool) {
	m := stabilityFlagPattern.FindStringSubmatch(strings.TrimSpace(expr))
	if m == nil {
		return strings.TrimSpace(expr), Stable, false
	}
	s, err := ParseStabilityName(m[2])
	if err != nil {
		return strings.TrimSpace(expr), Stable, false
	}
	rest = m[1]
	if rest == "" {
		rest = "*"
	}
	return rest, s, true
}

// ParseConstraints parses a constraint expression such as "^1.2",
// ">=1.0 <2.0", "1.0 - 2.0" or "~1.2 || 2.*".
func ParseConstraints(expr string) (Constraint, error) {
	pretty := strings.TrimSpace(expr)
	if pretty == "" {
		return nil, invalid(expr, "empty constraint")
	}
	work, _, _ := ExtractStabilityFlag(pretty)
	if m := referencePattern.FindStringSubmatch(work); m != nil {
		work = m[1]
	}

	groups := orSplit.Split(work, -1)
	ors := make([]Constraint, 0, len(groups))
	for _, group := range groups {
		group = strings.TrimSpace(group)
		if group == "" {
			return nil, invalid(expr, "empty alternative")
		}
		c, err := parseGroup(group)
		if err != nil {
			return nil, withValue(err, expr)
		}
		ors = append(ors, c)
	}

	var out Constraint
	if len(ors) == 1 {
		out = ors[0]
	} else {
		out = &MultiConstraint{Constraints: ors}
	}
	return labelled(out, pretty), nil
}

// MustParseConstraints is like ParseConstraints but panics on error.
func MustParseConstraints(expr string) Constraint {
	c, err := ParseConstraints(expr)
	if err != nil {
		panic(err)
	}
	return c
}

func parseGroup(group string) (Constraint, error) {
	if m := hyphenRange.FindStringSubmatch(group); m != nil {
		return parseHyphenRange(m[1], m[2])
	}
	group = operatorSpace.ReplaceAllString(group, "$1")
	parts := andSplit.Split(group, -1)
	ands := make([]Constraint, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		cs, err := parseSingle(part)
		if err != nil {
			return nil, err
		}
		ands = append(ands, cs...)
	}
	if len(ands) == 0 {
		return nil, invalid(group, "empty constraint")
	}
	return Intersect(ands...), nil
}

func parseSingle(part string) ([]Constraint, error) {
	if rest, _, ok := ExtractStabilityFlag(part); ok {
		part = rest
	}
	if wildcardAll.MatchString(part) {
		return []Constraint{MatchAll{}}, nil
	}

	if m := tildePattern.FindStringSubmatch(part); m != nil {
		segs, count := captureSegments(m[1:5])
		lower, err := lowerBound(part, segs, m[5], m[6], m[7])
		if err != nil {
			return nil, err
		}
		pos := count - 2
		if count == 1 {
			pos = 0
		}
		return []Constraint{
			NewSingle(OpGE, lower),
			NewSingle(OpLT, bump(segs, pos)),
		}, nil
	}

	if m := caretPattern.FindStringSubmatch(part); m != nil {
		segs, count := captureSegments(m[1:5])
		lower, err := lowerBound(part, segs, m[5], m[6], m[7])
		if err != nil {
			return nil, err
		}
		var pos int
		switch {
		case segs[0] != 0 || count == 1:
			pos = 0
		case segs[1] != 0 || count == 2:
			pos = 1
		default:
			pos = 2
		}
		return []Constraint{
			NewSingle(OpGE, lower),
			NewSingle(OpLT, bump(segs, pos)),
		}, nil
	}

	if m := wildcardPattern.FindStringSubmatch(part); m != nil {
		segs, count := captureSegments(m[1:4])
		return []Constraint{
			NewSingle(OpGE, build(padded(segs[:count]), nil, modDev, 0, false)),
			NewSingle(OpLT, bump(segs, count-1)),
		}, nil
	}

	m := operatorPattern.FindStringSubmatch(part)
	if m == nil || m[2] == "" {
		return nil, invalid(part, "missing version after operator")
	}
	v, err := Normalize(m[2])
	if err != nil {
		return nil, err
	}
	op := OpEQ
	switch m[1] {
	case "", "=", "==":
		op = OpEQ
	case "!=", "<>":
		op = OpNE
	default:
		op = Operator(m[1])
	}
	if (op == OpLT || op == OpGE) && !v.IsBranch() && v.Stability() == Stable && v.mod == modStable {
		// "<2.0" must exclude 2.0 pre-releases and ">=1.0" must admit them.
		v = v.devLowered()
	}
	return []Constraint{NewSingle(op, v)}, nil
}

func parseHyphenRange(from, to string) (Constraint, error) {
	low, err := Normalize(from)
	if err != nil {
		return nil, err
	}
	if low.IsBranch() {
		return nil, invalid(from, "branches cannot be range bounds")
	}
	if low.mod == modStable {
		low = low.devLowered()
	}
	if m := partialPattern.FindStringSubmatch(to); m != nil {
		segs, count := captureSegments(m[1:4])
		if count < 3 {
			return Intersect(NewSingle(OpGE, low), NewSingle(OpLT, bump(segs, count-1))), nil
		}
	}
	high, err := Normalize(to)
	if err != nil {
		return nil, err
	}
	if high.IsBranch() {
		return nil, invalid(to, "branches cannot be range bounds")
	}
	return Intersect(NewSingle(OpGE, low), NewSingle(OpLE, high)), nil
}

// captureSegments converts optional numeric captures into four segments and
// reports how many were present.
func captureSegments(caps []string) ([]int64, int) {
	segs := make([]int64, 4)
	count := 0
	for i, c := range caps {
		if c == "" {
			break
		}
		n, err := strconv.ParseInt(c, 10, 64)
		if err != nil {
			break
		}
		segs[i] = n
		count++
	}
	return segs, count
}

func lowerBound(raw string, segs []int64, mod, num, dev string) (Version, error) {
	if mod == "" && dev == "" {
		return build(padded(segs), nil, modDev, 0, false), nil
	}
	return fromParts(raw, padded(segs), nil, mod, num, dev)
}

// bump increments segment pos, zeroes the rest and returns the dev snapshot
// of the result, used as an exclusive upper bound.
func bump(segs []int64, pos int) Version {
	out := padded(segs)
	if pos < 0 {
		pos = 0
	}
	out[pos]++
	for i := pos + 1; i < len(out); i++ {
		out[i] = 0
	}
	return build(out, nil, modDev, 0, false)
}

func labelled(c Constraint, text string) Constraint {
	switch t := c.(type) {
	case *Single:
		cp := *t
		cp.Text = text
		return &cp
	case *MultiConstraint:
		cp := *t
		cp.Text = text
		return &cp
	case MatchAll:
		return &MultiConstraint{Conjunctive: true, Text: text}
	case MatchNone:
		return &MultiConstraint{Text: text}
	default:
		return c
	}
}

func withValue(err error, value string) error {
	var e *InvalidVersionFormatError
	if errors.As(err, &e) {
		return &InvalidVersionFormatError{Value: value, Reason: e.Reason}
	}
	return err
}
