// SPDX-License-Identifier: MPL-2.0

// Package execute assembles an install session from the user configuration,
// the project manifest and command-line flags. It builds the composite
// repository, the download manager, script hooks and the installer, so the
// CLI layer only parses flags and renders results.
package execute
