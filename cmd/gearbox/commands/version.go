// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/gearbox/cmd/gearbox/cli"
	"github.com/bureau-foundation/gearbox/lib/version"
)

type versionParams struct {
	Full bool `flag:"full" desc:"include the Go version and platform"`
}

func (a *app) versionCommand() *cli.Command {
	var params versionParams
	return &cli.Command{
		Name:    "version",
		Summary: "Print the gearbox version",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("version", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			if params.Full {
				fmt.Fprintln(a.stdout, version.Full())
				return nil
			}
			fmt.Fprintln(a.stdout, version.Info())
			return nil
		},
	}
}
