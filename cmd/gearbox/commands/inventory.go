// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/gearbox/cmd/gearbox/cli"
	"github.com/bureau-foundation/gearbox/lib/topology"
)

func (a *app) inventoryCommand() *cli.Command {
	return &cli.Command{
		Name:    "inventory",
		Summary: "Manage the topology inventory used by searches",
		Subcommands: []*cli.Command{
			a.inventoryImportCommand(),
			a.inventorySearchCommand(),
		},
	}
}

type inventoryImportParams struct {
	configParams
	Database string `flag:"database" desc:"SQLite inventory to update (default: topology.path)"`
}

func (a *app) inventoryImportCommand() *cli.Command {
	var params inventoryImportParams
	command := &cli.Command{
		Name:    "import",
		Summary: "Load nodes from an inventory file into the SQLite backend",
		Description: `Read nodes from a YAML or JSON inventory file and upsert them into the
SQLite topology database. A node's roles are replaced by the file's.`,
		Usage: "gearbox inventory import <file> [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("inventory import", &params)
		},
	}
	command.Run = func(ctx context.Context, args []string) error {
		if err := command.RequireArgs(args, 1); err != nil {
			return err
		}
		databasePath := params.Database
		if databasePath == "" {
			cfg, err := params.load()
			if err != nil {
				return err
			}
			if cfg.Topology.Backend != topology.BackendSQLite {
				return fmt.Errorf("topology.backend is %q; pass --database or configure the sqlite backend", cfg.Topology.Backend)
			}
			databasePath = cfg.Topology.Path
		}

		inventory, err := topology.LoadInventory(args[0])
		if err != nil {
			return err
		}
		logger := a.newLogger(params.Verbose)
		database, err := topology.OpenSQLite(databasePath, logger)
		if err != nil {
			return err
		}
		defer database.Close()

		if err := database.Put(ctx, inventory.Nodes...); err != nil {
			return err
		}
		logger.Info("inventory imported", "nodes", len(inventory.Nodes), "database", databasePath)
		fmt.Fprintf(a.stdout, "imported %d node(s) into %s\n", len(inventory.Nodes), databasePath)
		return nil
	}
	return command
}

type inventorySearchParams struct {
	configParams
	cli.JSONOutput
	Role        string `flag:"role" desc:"role to search for (required)"`
	Environment string `flag:"environment" desc:"environment to search (default: the node's)"`
	All         bool   `flag:"all-environments" desc:"search every environment"`
}

func (a *app) inventorySearchCommand() *cli.Command {
	var params inventorySearchParams
	command := &cli.Command{
		Name:    "search",
		Summary: "Run a topology search as a deployment would",
		Usage:   "gearbox inventory search --role <role> [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("inventory search", &params)
		},
	}
	command.Run = func(ctx context.Context, args []string) error {
		if err := command.RequireArgs(args, 0); err != nil {
			return err
		}
		if params.Role == "" {
			return fmt.Errorf("--role is required")
		}
		cfg, err := params.load()
		if err != nil {
			return err
		}
		backend, err := topology.Open(cfg.Topology.Backend, cfg.Topology.Path, a.newLogger(params.Verbose))
		if err != nil {
			return err
		}
		if backend == nil {
			return fmt.Errorf("no topology backend configured")
		}
		defer backend.Close()

		query := topology.Query{Kind: topology.KindNode, Role: params.Role, Environment: params.Environment}
		if query.Environment == "" && !params.All {
			query.Environment = string(cfg.Environment)
		}
		nodes, err := backend.Search(ctx, query)
		if err != nil {
			return err
		}
		if done, err := params.EmitJSON(a.stdout, nodes); done {
			return err
		}

		fmt.Fprintln(a.stdout, cli.MutedStyle.Render(query.String()))
		writer := tabwriter.NewWriter(a.stdout, 2, 0, 3, ' ', 0)
		for _, node := range nodes {
			fmt.Fprintf(writer, "%s\t%s\t%s\n", node.Name, node.Environment, strings.Join(node.Roles, ","))
		}
		return writer.Flush()
	}
	return command
}
