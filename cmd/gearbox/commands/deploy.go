// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/gearbox/cmd/gearbox/cli"
	"github.com/bureau-foundation/gearbox/lib/deploy"
)

type deployParams struct {
	configParams
	cli.JSONOutput
	URL    string `flag:"url" desc:"download the artifact from this URL"`
	Bucket string `flag:"bucket" desc:"fetch the artifact from this bucket unless already cached"`
	Digest string `flag:"digest" desc:"expected BLAKE3 digest of the artifact (hex)"`
}

// deploySummary is the --json form of a deployment.
type deploySummary struct {
	Application string    `json:"application"`
	Version     string    `json:"version"`
	Source      string    `json:"source"`
	Location    string    `json:"location,omitempty"`
	Digest      string    `json:"digest,omitempty"`
	Fetched     bool      `json:"fetched"`
	Extracted   bool      `json:"extracted"`
	Rendered    []string  `json:"rendered"`
	Previous    string    `json:"previous,omitempty"`
	DeployedAt  time.Time `json:"deployed_at"`
}

func (a *app) deployCommand() *cli.Command {
	var params deployParams
	command := &cli.Command{
		Name:    "deploy",
		Summary: "Deploy a version of an application",
		Description: `Deploy a version of an application on this node.

The artifact source is the node's local cache when node.local_path is
set, otherwise --url, otherwise --bucket. With no source, a version that
is already extracted is re-rendered and made current; in strict mode
(the production default) a missing source is an error.

If the release pointer cannot be moved after the version is prepared,
gearbox exits with status 3: the node needs an operator.`,
		Usage: "gearbox deploy <application> <version> [flags]",
		Examples: []cli.Example{
			{Description: "Deploy from the configured local cache", Command: "gearbox deploy foo 1.2.3"},
			{Description: "Deploy from a bucket, pinning the digest", Command: "gearbox deploy foo 1.2.3 --bucket releases --digest 5e3c..."},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("deploy", &params)
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

		result, err := node.Deploy(ctx, deploy.Request{
			Application: args[0],
			Version:     args[1],
			URL:         params.URL,
			Bucket:      params.Bucket,
			Digest:      params.Digest,
		})
		if err != nil {
			var deployError *deploy.Error
			if errors.As(err, &deployError) && deployError.RequiresRemediation() {
				return &cli.ExitError{Code: cli.ExitRemediation, Err: err}
			}
			return err
		}

		summary := deploySummary{
			Application: result.Application,
			Version:     result.Version,
			Source:      string(result.Artifact.Source),
			Location:    result.Artifact.Location,
			Digest:      result.Artifact.Digest,
			Fetched:     result.Artifact.Fetched,
			Extracted:   result.Extracted,
			Previous:    result.Previous,
		}
		for _, mapping := range result.Rendered {
			summary.Rendered = append(summary.Rendered, mapping.Output)
		}
		if result.Receipt != nil {
			summary.DeployedAt = result.Receipt.DeployedAt
		}
		if done, err := params.EmitJSON(a.stdout, summary); done {
			return err
		}

		fmt.Fprintln(a.stdout, cli.HeadingStyle.Render(fmt.Sprintf("%s %s deployed", result.Application, result.Version)))
		fmt.Fprintln(a.stdout, cli.Field("source", summary.Source))
		if summary.Digest != "" {
			fmt.Fprintln(a.stdout, cli.Field("digest", summary.Digest))
		}
		fmt.Fprintln(a.stdout, cli.Field("extracted", fmt.Sprint(summary.Extracted)))
		fmt.Fprintln(a.stdout, cli.Field("rendered", fmt.Sprintf("%d file(s)", len(summary.Rendered))))
		if summary.Previous != "" {
			fmt.Fprintln(a.stdout, cli.Field("previous", summary.Previous))
		}
		return nil
	}
	return command
}
