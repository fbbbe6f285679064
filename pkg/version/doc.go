// SPDX-License-Identifier: MPL-2.0

// Package version implements pakt's version and constraint model.
//
// Raw version strings are normalized into comparable [Version] values:
//   - classical releases ("1.2", "v2.0.1-beta3", "1.0.0-RC1")
//   - date versions ("2012-06-01")
//   - VCS branch pseudo-versions ("1.0.x-dev")
//   - named dev branches ("dev-feature")
//
// [Compare] defines a strict total order over every normalized version.
// Constraint expressions ("^1.2", "~1.0", ">=1.0 <2.0", "1.0 - 2.0 || 3.*")
// parse into [Constraint] trees whose Matches method is pure.
//
// Stability (stable, RC, beta, alpha, dev) is derived from the version. The
// ordering used to compare stabilities against a minimum-stability floor is a
// [StabilityOrder] value that callers inject; there is no package-level table.
package version
