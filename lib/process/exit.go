// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ExitCoder is implemented by errors that select the process exit
// code.
type ExitCoder interface {
	ExitCode() int
}

// Fatal reports err and exits. See [Report] for the output and code.
func Fatal(err error) {
	os.Exit(Report(os.Stderr, err))
}

// Report writes "error: err" to w and returns the exit code for err:
// the code of the first [ExitCoder] in its chain, or 1. An ExitCoder
// whose Unwrap returns nil has already reported itself and nothing is
// written.
func Report(w io.Writer, err error) int {
	code := 1
	var coder ExitCoder
	if errors.As(err, &coder) {
		code = coder.ExitCode()
		if wrapper, ok := coder.(interface{ Unwrap() error }); ok && wrapper.Unwrap() == nil {
			return code
		}
	}
	fmt.Fprintf(w, "error: %v\n", err)
	return code
}
