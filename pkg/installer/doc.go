// SPDX-License-Identifier: MPL-2.0

// Package installer turns a project's root requirements into packages on
// disk.
//
// A run resolves the requirements, diffs the result against the installed
// record into an ordered list of operations, and executes them one at a
// time through a downloader.Manager. The installed record is persisted
// after every successful operation, so an interrupted run leaves it
// describing exactly what is on disk and the next run re-diffs from there.
// When every operation succeeds, the final installed set is handed to an
// AutoloadHandoff.
package installer
