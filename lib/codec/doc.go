// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds gearbox's CBOR configuration for on-disk state.
//
// JSON is used wherever a human reads or writes the data (records,
// inventories, CLI output). CBOR is used for state gearbox writes for
// itself, currently the per-application release receipt. Encoding is
// Core Deterministic (RFC 8949 §4.2), so identical receipts produce
// identical bytes.
package codec
