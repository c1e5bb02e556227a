// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tree provides the configuration tree used to build template
// contexts.
//
// A [Value] is one of four variants: null, scalar, sequence or
// mapping. Values are immutable; [Merge] and [Value.With] return new
// trees and share unchanged subtrees with their inputs. Decoded JSON,
// YAML and CBOR documents enter through [FromAny] and leave through
// [Value.Interface], which is the form handed to the template engine.
//
// Merge precedence is positional: in Merge(base, overlay) the overlay
// wins every conflict, recursing only where both sides hold mappings.
//
// This package depends on no other gearbox packages.
package tree
