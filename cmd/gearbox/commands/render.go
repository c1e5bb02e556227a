// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/gearbox/cmd/gearbox/cli"
	"github.com/bureau-foundation/gearbox/lib/render"
)

type renderParams struct {
	configParams
	cli.JSONOutput
}

func (a *app) renderCommand() *cli.Command {
	var params renderParams
	command := &cli.Command{
		Name:    "render",
		Summary: "Recompile configuration for an extracted version",
		Description: `Rebuild the template context and recompile gbconfig/ for a version
that is already extracted. The artifact store and the release pointer
are not touched.`,
		Usage: "gearbox render <application> <version> [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("render", &params)
		},
	}
	command.Run = func(ctx context.Context, args []string) error {
		if err := command.RequireArgs(args, 2); err != nil {
			return err
		}
		node, _, err := a.openNode(&params.configParams)
		if err != nil {
			return err
		}
		defer node.Close()

		rendered, err := node.Rerender(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		if done, err := params.EmitJSON(a.stdout, rendered); done {
			return err
		}
		a.writeMappings(rendered)
		return nil
	}
	return command
}

type planParams struct {
	configParams
	cli.JSONOutput
}

func (a *app) planCommand() *cli.Command {
	var params planParams
	command := &cli.Command{
		Name:    "plan",
		Summary: "List the templates a render would compile",
		Usage:   "gearbox plan <application> <version> [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("plan", &params)
		},
	}
	command.Run = func(ctx context.Context, args []string) error {
		if err := command.RequireArgs(args, 2); err != nil {
			return err
		}
		node, _, err := a.openNode(&params.configParams)
		if err != nil {
			return err
		}
		defer node.Close()

		preview, err := node.Preview(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		if done, err := params.EmitJSON(a.stdout, preview.Plan.Mappings); done {
			return err
		}
		a.writeMappings(preview.Plan.Mappings)
		return nil
	}
	return command
}

func (a *app) writeMappings(mappings []render.Mapping) {
	if len(mappings) == 0 {
		fmt.Fprintln(a.stdout, cli.MutedStyle.Render("no templates"))
		return
	}
	writer := tabwriter.NewWriter(a.stdout, 2, 0, 3, ' ', 0)
	for _, mapping := range mappings {
		fmt.Fprintf(writer, "%s\t->\t%s\n", mapping.Source, mapping.Output)
	}
	writer.Flush()
}
