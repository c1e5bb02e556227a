// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/gearbox/cmd/gearbox/cli"
	"github.com/bureau-foundation/gearbox/lib/tree"
)

type contextParams struct {
	configParams
	Format string `flag:"format,f" desc:"output format: json or yaml" default:"json"`
	Tree   bool   `flag:"tree" desc:"print the merged tree instead of the template view"`
}

func (a *app) contextCommand() *cli.Command {
	var params contextParams
	command := &cli.Command{
		Name:    "context",
		Summary: "Print the template context for an application",
		Description: `Build and print the context templates would see. By default this is
the template view: the merged tree with the application's subtree and
the reserved "gearbox" namespace lifted to the top level. --tree prints
the merged tree before lifting.

The context may contain decrypted secrets.`,
		Usage: "gearbox context <application> <version> [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("context", &params)
		},
	}
	command.Run = func(ctx context.Context, args []string) error {
		if err := command.RequireArgs(args, 2); err != nil {
			return err
		}
		encode, err := encoderFor(params.Format)
		if err != nil {
			return err
		}
		node, _, err := a.openNode(&params.configParams)
		if err != nil {
			return err
		}
		defer node.Close()

		built, err := node.BuildContext(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		value := built.View()
		if params.Tree {
			value = built.Tree()
		}
		document, err := encode(value)
		if err != nil {
			return err
		}
		return cli.Highlight(a.stdout, document, params.Format)
	}
	return command
}

func encoderFor(format string) (func(tree.Value) (string, error), error) {
	switch format {
	case "json":
		return func(value tree.Value) (string, error) {
			data, err := json.MarshalIndent(value, "", "  ")
			if err != nil {
				return "", err
			}
			return string(data) + "\n", nil
		}, nil
	case "yaml":
		return func(value tree.Value) (string, error) {
			data, err := yaml.Marshal(value.Interface())
			if err != nil {
				return "", err
			}
			return string(data), nil
		}, nil
	}
	return nil, fmt.Errorf("unknown format %q (want json or yaml)", format)
}
