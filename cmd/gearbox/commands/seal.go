// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/gearbox/cmd/gearbox/cli"
	"github.com/bureau-foundation/gearbox/lib/databag"
	"github.com/bureau-foundation/gearbox/lib/secret"
)

type sealParams struct {
	configParams
	Recipients []string `flag:"recipient,r" desc:"age recipient (repeatable)"`
	Input      string   `flag:"input,i" desc:"read the plaintext record from this file instead of stdin"`
}

func (a *app) sealCommand() *cli.Command {
	var params sealParams
	command := &cli.Command{
		Name:    "seal",
		Summary: "Write an encrypted data bag item",
		Description: `Encrypt a JSON record to one or more age recipients and store it as
<data_bags.root>/<bag>/<item>.age, where encrypted_data_bags sources
can load it.`,
		Usage: "gearbox seal <bag> <item> --recipient <age1...> [flags]",
		Examples: []cli.Example{
			{
				Description: "Seal database credentials for two nodes",
				Command:     "gearbox seal secrets db -r age1... -r age1... < db.json",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("seal", &params)
		},
	}
	command.Run = func(ctx context.Context, args []string) error {
		if err := command.RequireArgs(args, 2); err != nil {
			return err
		}
		if len(params.Recipients) == 0 {
			return fmt.Errorf("at least one --recipient is required")
		}
		cfg, err := params.load()
		if err != nil {
			return err
		}

		var plaintext *secret.Buffer
		if params.Input != "" {
			plaintext, err = secret.ReadFile(params.Input)
		} else {
			plaintext, err = readSecret(a.stdin)
		}
		if err != nil {
			return err
		}
		defer plaintext.Close()

		store := &databag.Store{Root: cfg.DataBags.Root, Logger: a.newLogger(params.Verbose)}
		path, err := store.WriteEncrypted(args[0], args[1], plaintext.Bytes(), params.Recipients)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, path)
		return nil
	}
	return command
}

func readSecret(reader io.Reader) (*secret.Buffer, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading plaintext: %w", err)
	}
	defer secret.Zero(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("plaintext is empty")
	}
	return secret.NewFromBytes(data)
}
