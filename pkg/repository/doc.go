// SPDX-License-Identifier: MPL-2.0

// Package repository provides the sources pakt queries for package
// metadata.
//
// Every backend implements [Repository]:
//   - [ArrayRepository]: a static in-memory set
//   - [PlatformRepository]: virtual packages describing the runtime
//   - [FilesystemRepository]: a local JSON file; also the writable record of
//     installed packages
//   - [RegistryRepository]: a remote packages.json index
//   - [VcsRepository]: a git repository whose tags and branches are versions
//
// [CompositeRepository] fans a query out to its members and returns
// [Candidate] values that remember which member produced each package, so the
// installer can notify the right backend after an install.
package repository
