// SPDX-License-Identifier: MPL-2.0

// Package pkgmeta defines the package metadata model shared by repositories,
// the resolver, downloaders and the installer, along with its JSON record
// form. Unknown record fields are preserved so installed-package files
// round-trip without loss.
package pkgmeta
