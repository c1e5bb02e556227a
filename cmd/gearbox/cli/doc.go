// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for gearbox.
//
// The central type is [Command], a named subcommand with optional
// nested [Command.Subcommands], a [pflag.FlagSet] factory, and a Run
// function that receives the process context. Commands are assembled
// into a tree in cmd/gearbox/commands and dispatched via
// [Command.Execute], which handles flag parsing, subcommand routing,
// and help output with examples.
//
// Unknown subcommands and flags get a suggestion when a known name is
// within edit distance 3 (suggest.go).
//
// Flags are declared as struct tags and bound by [FlagsFromParams].
// [JSONOutput] adds a --json flag; [Highlight] colors documents when
// stdout is a terminal.
package cli
