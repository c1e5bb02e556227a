// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/gearbox/cmd/gearbox/cli"
	"github.com/bureau-foundation/gearbox/lib/codec"
	"github.com/bureau-foundation/gearbox/lib/layout"
)

type statusParams struct {
	configParams
	cli.JSONOutput
	Raw bool `flag:"raw" desc:"print the stored receipt in CBOR diagnostic notation"`
}

func (a *app) statusCommand() *cli.Command {
	var params statusParams
	command := &cli.Command{
		Name:    "status",
		Summary: "Show an application's release pointer and versions",
		Usage:   "gearbox status <application> [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("status", &params)
		},
	}
	command.Run = func(ctx context.Context, args []string) error {
		if err := command.RequireArgs(args, 1); err != nil {
			return err
		}
		cfg, err := params.load()
		if err != nil {
			return err
		}

		if params.Raw {
			paths, err := layout.New(cfg.Node.AppDir, args[0])
			if err != nil {
				return err
			}
			data, err := os.ReadFile(paths.ReceiptPath())
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("%s has no receipt", args[0])
			}
			if err != nil {
				return err
			}
			diagnostic, err := codec.Diagnose(data)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, diagnostic)
			return nil
		}

		node, _, err := a.openNode(&params.configParams)
		if err != nil {
			return err
		}
		defer node.Close()

		status, err := node.Status(args[0])
		if err != nil {
			return err
		}
		if done, err := params.EmitJSON(a.stdout, status); done {
			return err
		}

		fmt.Fprintln(a.stdout, cli.HeadingStyle.Render(status.Application))
		fmt.Fprintln(a.stdout, cli.Field("home", status.Home))
		current := cli.MutedStyle.Render("(none)")
		if status.Current != "" {
			current = cli.GoodStyle.Render(status.Current)
		}
		fmt.Fprintln(a.stdout, cli.Field("current", current))
		versions := cli.MutedStyle.Render("(none)")
		if len(status.Versions) > 0 {
			versions = strings.Join(status.Versions, ", ")
		}
		fmt.Fprintln(a.stdout, cli.Field("versions", versions))
		if receipt := status.Receipt; receipt != nil {
			fmt.Fprintln(a.stdout, cli.Field("deployed", fmt.Sprintf("%s at %s", receipt.Version, receipt.DeployedAt.Format(time.RFC3339))))
			fmt.Fprintln(a.stdout, cli.Field("source", receipt.Source))
			if receipt.Digest != "" {
				fmt.Fprintln(a.stdout, cli.Field("digest", receipt.Digest))
			}
		}
		return nil
	}
	return command
}
