// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// Exit codes returned by gearbox.
const (
	// ExitFailure is any failed command.
	ExitFailure = 1

	// ExitUsage is a malformed command line.
	ExitUsage = 2

	// ExitRemediation is a deployment that stopped after preparing a
	// version but before the release pointer moved to it. An operator
	// must inspect the node.
	ExitRemediation = 3
)

// ExitError signals a non-zero exit code. When Err is nil the command
// has already written its own output and main prints nothing.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit code %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode returns the exit code. main checks for this interface on
// returned errors.
func (e *ExitError) ExitCode() int {
	return e.Code
}
