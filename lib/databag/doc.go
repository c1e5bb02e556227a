// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package databag loads named records ("data bag items") from a
// directory tree.
//
// A record is addressed by a bag and an item. Plain records live at
// <root>/<bag>/<item>.json (JSON with comments and trailing commas) or
// <root>/<bag>/<item>.yaml. Encrypted records live at
// <root>/<bag>/<item>.age: an age file, armored or binary, whose
// plaintext is a JSON document. Decrypted plaintext is held in a
// [secret.Buffer] only for as long as it takes to decode it.
//
// Every loaded record is returned as a [tree.Value] mapping.
package databag
