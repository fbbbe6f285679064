// SPDX-License-Identifier: MPL-2.0

package version

import (
	"fmt"
	"regexp"
	"strings"
)

// Stability levels, from most to least mature.
const (
	Stable Stability = iota
	RC
	Beta
	Alpha
	Dev
)

var stabilitySuffixPattern = regexp.MustCompile(`(?i)[._-]?(?:(beta|b|rc|alpha|a|patch|pl|p)(?:[.-]?\d+)?)?([.-]?dev)?$`)

type (
	// Stability classifies the maturity of a version.
	Stability int

	// StabilityOrder is an explicit ranking of stabilities, most stable first.
	// It is passed to the resolver instead of living in package state so that
	// callers (and tests) control how minimum-stability floors are applied.
	StabilityOrder struct {
		levels []Stability
	}
)

// String returns the canonical name of the stability.
func (s Stability) String() string {
	switch s {
	case Stable:
		return "stable"
	case RC:
		return "RC"
	case Beta:
		return "beta"
	case Alpha:
		return "alpha"
	case Dev:
		return "dev"
	default:
		return fmt.Sprintf("stability(%d)", int(s))
	}
}

// ParseStabilityName parses a stability name case-insensitively.
func ParseStabilityName(name string) (Stability, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "stable":
		return Stable, nil
	case "rc":
		return RC, nil
	case "beta":
		return Beta, nil
	case "alpha":
		return Alpha, nil
	case "dev":
		return Dev, nil
	default:
		return Stable, invalid(name, "unknown stability, expected one of stable, RC, beta, alpha, dev")
	}
}

// ParseStability guesses the stability of a raw version string without
// normalizing it.
func ParseStability(raw string) Stability {
	v := strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(v, "dev-") || strings.HasSuffix(v, "-dev") {
		return Dev
	}
	m := stabilitySuffixPattern.FindStringSubmatch(v)
	if m == nil {
		return Stable
	}
	if m[2] != "" {
		return Dev
	}
	switch m[1] {
	case "beta", "b":
		return Beta
	case "alpha", "a":
		return Alpha
	case "rc":
		return RC
	default:
		return Stable
	}
}

// DefaultStabilityOrder returns the stable > RC > beta > alpha > dev ranking.
func DefaultStabilityOrder() StabilityOrder {
	return StabilityOrder{levels: []Stability{Stable, RC, Beta, Alpha, Dev}}
}

// NewStabilityOrder builds a ranking from levels listed most stable first.
// Every stability must appear exactly once.
func NewStabilityOrder(levels ...Stability) (StabilityOrder, error) {
	seen := make(map[Stability]bool, len(levels))
	for _, l := range levels {
		if l < Stable || l > Dev {
			return StabilityOrder{}, fmt.Errorf("unknown stability %d", int(l))
		}
		if seen[l] {
			return StabilityOrder{}, fmt.Errorf("stability %s listed twice", l)
		}
		seen[l] = true
	}
	if len(seen) != 5 {
		return StabilityOrder{}, fmt.Errorf("stability order must rank all 5 levels, got %d", len(seen))
	}
	return StabilityOrder{levels: append([]Stability(nil), levels...)}, nil
}

// Rank returns the position of s in the order; lower is more stable.
// The zero StabilityOrder behaves like DefaultStabilityOrder.
func (o StabilityOrder) Rank(s Stability) int {
	levels := o.levels
	if len(levels) == 0 {
		levels = DefaultStabilityOrder().levels
	}
	for i, l := range levels {
		if l == s {
			return i
		}
	}
	return len(levels)
}

// Allows reports whether s is at least as stable as floor.
func (o StabilityOrder) Allows(floor, s Stability) bool {
	return o.Rank(s) <= o.Rank(floor)
}
