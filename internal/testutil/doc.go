// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions for tests that handle errors
// appropriately, reducing boilerplate and ensuring consistent error handling.
//
// Common helpers include environment variable management (MustSetenv, SetHomeDir),
// file operations (MustMkdirAll, MustWriteFile, MustReadFile), resource cleanup
// (MustClose, DeferClose) and GitRepo, a builder for local git fixtures with
// tagged commits and branches.
package testutil
