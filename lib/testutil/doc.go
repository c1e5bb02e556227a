// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for gearbox packages.
//
// [WriteTarball] builds release artifacts on disk in any of the
// compressions the extractor accepts, so tests exercise real archives
// instead of mocking the extractor. [Files] turns a path→content map
// into tarball entries in a stable order.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
