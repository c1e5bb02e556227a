// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// gearbox deploys application releases on the node it runs on.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/gearbox/cmd/gearbox/commands"
	"github.com/bureau-foundation/gearbox/lib/process"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return commands.Root().Execute(ctx, os.Args[1:])
}
