// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides the binary entrypoint helper used by
// cmd/gearbox: reporting an error returned from run() and exiting with
// the code it carries. This is the one place outside the CLI that
// writes to stderr without the structured logger, since the logger may
// not exist yet when configuration fails to load.
package process
