// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands assembles the gearbox command tree.
//
// Every command that touches the node reads gearbox.yaml from --config
// or $GEARBOX_CONFIG and builds a [deploy.Node] from it. Output goes to
// the writers held by the tree so tests can run commands against a
// temporary node.
package commands
