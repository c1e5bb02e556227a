// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package rendercontext assembles the configuration tree handed to an
// application's templates.
//
// [Builder.Build] runs a fixed list of merge steps, lowest precedence
// first:
//
//  1. the node's attributes form the base tree;
//  2. the application subtree (base[application]) has the application
//     record merged over it;
//  3. each search declared by the record writes its projected results
//     under the subtree;
//  4. encrypted sources, node-level then record-level, are decrypted;
//  5. plain sources, node-level then record-level, are loaded;
//  6. source results replace their keys in the subtree;
//  7. the reserved "gearbox" namespace of deployment paths is merged
//     under "gearbox" and into the top level;
//  8. the subtree is written back under base[application].
//
// A source is a key mapped to a list of argument sets, [bag, item] or
// (encrypted only) [bag, item, identityFile]. The key receives the
// sequence of loaded records, one per argument set. Keys within one
// list are processed in sorted order and a later list overwrites the
// whole key.
//
// The result is a [Context]. Templates see [Context.View], which lifts
// the application subtree and the reserved namespace to the top level
// so that application keys are referenced unqualified.
package rendercontext
