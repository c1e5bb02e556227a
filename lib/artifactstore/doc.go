// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package artifactstore places a version's tarball in the
// application's tars/ directory.
//
// Exactly one backend is consulted per deployment, chosen in fixed
// order:
//
//  1. the node's local artifact cache (node.local_path), always copied;
//  2. a URL supplied with the request, always fetched;
//  3. a bucket supplied with the request, fetched only if the tarball
//     is not already cached;
//  4. nothing: a warning in lenient mode, [ErrUnavailable] in strict
//     mode.
//
// There is no fallback from one backend to the next. Lenient mode
// exists so a version that is already extracted can be re-rendered
// without its artifact source.
//
// Every resolved tarball gets a BLAKE3 digest, which callers record
// and may pin with [Request].Digest.
package artifactstore
