// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package topology answers "which nodes hold role R in environment E"
// for template contexts.
//
// A [Searcher] returns point-in-time snapshots of matching [Node]
// records, always ordered by node name so that a singular search (the
// first match) is stable across runs. Two backends exist:
//
//   - [Inventory], a YAML or JSON file listing nodes, for small fleets
//     and tests.
//   - [SQLite], a database with nodes and node_roles tables, populated
//     by "gearbox inventory import" or by external tooling writing the
//     same schema.
package topology
