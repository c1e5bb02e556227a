// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package layout defines the on-disk tree of a deployed application
// and the ownership primitives used to populate it.
//
// Every path gearbox reads or writes for an application is computed by
// [Application]; no other package joins application paths by hand.
// Ownership goes through [Owner] so the same code runs as root (chown
// to the application account via [LookupAccount]) and unprivileged
// ([Unowned]).
package layout
