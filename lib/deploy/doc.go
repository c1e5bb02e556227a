// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package deploy sequences one deployment of one application version
// on this node.
//
// [Deployer.Deploy] runs the stages in order: acquire the artifact,
// extract it, load the application record, build the template
// context, compile templates into the version's gbconfig directory,
// move the release pointer, and record a [Receipt]. Each stage runs
// only if every earlier stage succeeded, so the release pointer is
// never moved to a version whose configuration failed to compile.
//
// Failures are returned as [*Error], which names the stage. A failure
// in the cutover stage reports [Error.RequiresRemediation]: the new
// version is fully prepared but the pointer could not be moved, and an
// operator must look at the application directory.
//
// [Deployer.Rerender] recompiles configuration for an already
// extracted version without fetching or cutting over, and
// [Deployer.Preview] reports what a render would do without writing.
package deploy
