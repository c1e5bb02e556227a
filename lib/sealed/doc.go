// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed encrypts and decrypts data bag records with age.
//
// Encrypted records are age files, ASCII-armored by [Seal] but
// accepted by [Identities.Open] in either armored or binary form. The
// plaintext is the record's JSON document. Identity files hold one or
// more AGE-SECRET-KEY-1 lines; they are read through secret.Buffer so
// the key material never sits in a plain heap slice.
//
// How identity files reach a node is outside gearbox; this package
// only reads them.
package sealed
