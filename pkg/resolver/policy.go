// SPDX-License-Identifier: MPL-2.0

package resolver

import (
	"fmt"
	"strings"

	"github.com/pakt/pakt/pkg/version"
)

// Candidate tie-break strategies.
const (
	// VersionFirst tries the highest version from any repository first;
	// equal versions prefer the earlier repository.
	VersionFirst Selection = iota
	// RepositoryFirst only considers the earliest repository that offers
	// an acceptable version of a package, highest version first.
	RepositoryFirst
)

type (
	// Selection decides how candidates from several repositories are
	// ordered.
	Selection int

	// Policy is the injected configuration of candidate ordering.
	Policy struct {
		Stability version.StabilityOrder
		Selection Selection
	}
)

// DefaultPolicy returns VersionFirst with the default stability order.
func DefaultPolicy() Policy {
	return Policy{Stability: version.DefaultStabilityOrder(), Selection: VersionFirst}
}

// String returns the configuration name of s.
func (s Selection) String() string {
	switch s {
	case VersionFirst:
		return "version-first"
	case RepositoryFirst:
		return "repository-first"
	default:
		return fmt.Sprintf("selection(%d)", int(s))
	}
}

// ParseSelection parses "version-first" or "repository-first". An empty
// string selects VersionFirst.
func ParseSelection(s string) (Selection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "version-first":
		return VersionFirst, nil
	case "repository-first":
		return RepositoryFirst, nil
	default:
		return VersionFirst, fmt.Errorf("unknown selection policy %q (want version-first or repository-first)", s)
	}
}
