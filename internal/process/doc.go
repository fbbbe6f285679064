// SPDX-License-Identifier: MPL-2.0

// Package process runs external executables (git, hg, svn) on behalf of the
// VCS downloaders and renders their command lines with shell-safe quoting.
package process
