// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/bureau-foundation/gearbox/cmd/gearbox/cli"
	"github.com/bureau-foundation/gearbox/lib/config"
	"github.com/bureau-foundation/gearbox/lib/deploy"
)

// app holds what every command shares.
type app struct {
	stdin  io.Reader
	stdout io.Writer

	// newLogger builds the command logger. Tests replace it to keep
	// output quiet.
	newLogger func(verbose bool) *slog.Logger
}

// Root returns the gearbox command tree wired to the process streams.
func Root() *cli.Command {
	return newRoot(&app{
		stdin:     os.Stdin,
		stdout:    os.Stdout,
		newLogger: cli.NewCommandLogger,
	})
}

func newRoot(a *app) *cli.Command {
	return &cli.Command{
		Name:    "gearbox",
		Summary: "Per-node application release agent",
		Description: `gearbox deploys application releases on this node.

A deployment fetches the version's artifact, extracts it once into
versions/<version>, compiles the bundled mustache templates against a
context built from node attributes, the application's record, topology
searches and data bags, and finally moves the "current" symlink.

Configuration is read from the file named by --config or $GEARBOX_CONFIG.`,
		Subcommands: []*cli.Command{
			a.deployCommand(),
			a.renderCommand(),
			a.planCommand(),
			a.contextCommand(),
			a.statusCommand(),
			a.sealCommand(),
			a.inventoryCommand(),
			a.versionCommand(),
		},
	}
}

// configParams selects the node configuration. Every command that reads
// the node embeds it.
type configParams struct {
	ConfigPath string `flag:"config,c" desc:"path to gearbox.yaml (default: $GEARBOX_CONFIG)"`
	Verbose    bool   `flag:"verbose,v" desc:"log debug detail"`
}

func (p *configParams) load() (*config.Config, error) {
	if p.ConfigPath != "" {
		return config.LoadFile(p.ConfigPath)
	}
	return config.Load()
}

// openNode loads the configuration and builds the node's deployer.
// The caller must Close the result.
func (a *app) openNode(params *configParams) (*deploy.Node, *slog.Logger, error) {
	cfg, err := params.load()
	if err != nil {
		return nil, nil, err
	}
	logger := a.newLogger(params.Verbose).With("environment", string(cfg.Environment))
	node, err := deploy.FromConfig(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return node, logger, nil
}
