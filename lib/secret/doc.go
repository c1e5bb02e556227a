// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds decryption identities and decrypted data bag
// plaintext outside the Go heap.
//
// A [Buffer] is an anonymous mmap region that is locked into RAM
// (never swapped), excluded from core dumps, and zeroed when closed.
// The garbage collector never sees the region, so secret bytes do not
// linger in copies left behind by heap compaction.
//
// [ReadFile] loads an identity file straight into a Buffer and wipes
// the intermediate heap copy.
package secret
