// SPDX-License-Identifier: MPL-2.0

// Package manifest reads the pakt.json project manifest.
package manifest
