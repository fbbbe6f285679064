// SPDX-License-Identifier: MPL-2.0

// Package resolver selects one version per package so that every
// requirement reachable from the root is satisfied.
//
// The search is a depth-first backtracking walk driven by an explicit stack
// of decision frames. Each frame owns an ordered candidate list, a cursor
// and a snapshot of the search state taken before its decision, so a
// conflict restores the snapshot of the nearest frame with untried
// candidates and moves its cursor on. Candidate order comes from [Policy].
package resolver
