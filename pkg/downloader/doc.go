// SPDX-License-Identifier: MPL-2.0

// Package downloader materializes packages on disk.
//
// Two variants implement [Downloader]: [VcsDownloader] checks out a source
// reference with git, hg or svn, and [ArchiveDownloader] fetches and unpacks
// a dist archive. [Manager] picks the variant for each package. Working
// copies with local modifications are never updated or removed.
package downloader
