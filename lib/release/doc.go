// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package release unpacks versioned artifacts and moves an
// application's release pointer.
//
// [Extractor.EnsureExtracted] treats an existing version directory as
// complete: it never re-reads, verifies or rewrites it. New versions
// are unpacked into a hidden sibling directory and renamed into place
// only after every member has been written, so a version directory
// that exists is always whole. Archives may be gzip, zstd or lz4
// compressed; the encoding is detected from the leading bytes, not the
// file name.
//
// [Cutover] replaces the `current` symlink by creating the new link
// under a temporary name and renaming it over the old one. rename(2)
// is atomic, so a reader resolving `current` sees either the previous
// version or the new one and never a missing link.
package release
