// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package deploy

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bureau-foundation/gearbox/lib/artifactstore"
	"github.com/bureau-foundation/gearbox/lib/clock"
	"github.com/bureau-foundation/gearbox/lib/config"
	"github.com/bureau-foundation/gearbox/lib/databag"
	"github.com/bureau-foundation/gearbox/lib/rendercontext"
	"github.com/bureau-foundation/gearbox/lib/topology"
)

// Node is a Deployer wired from a node configuration, plus the
// resources it holds open.
type Node struct {
	*Deployer

	Records  *databag.Store
	Topology topology.Backend
}

// FromConfig builds the Deployer described by cfg. The caller must
// Close the result.
func FromConfig(cfg *config.Config, logger *slog.Logger) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	attributes, err := LoadAttributes(cfg.Node.AttributesFile)
	if err != nil {
		return nil, err
	}

	fetchTimeout, _ := cfg.FetchTimeout()
	retryDelay, _ := cfg.RetryDelay()
	client := &http.Client{Timeout: fetchTimeout}
	bucket, err := artifactstore.NewBucket(cfg.Artifact.BucketEndpoint, client)
	if err != nil {
		return nil, err
	}

	backend, err := topology.Open(cfg.Topology.Backend, cfg.Topology.Path, logger)
	if err != nil {
		return nil, err
	}

	records := &databag.Store{
		Root:         cfg.DataBags.Root,
		IdentityFile: cfg.DataBags.IdentityFile,
		Logger:       logger,
	}

	builder := &rendercontext.Builder{
		Records:           records,
		Environment:       string(cfg.Environment),
		DataBags:          rendercontext.Sources(cfg.Node.DataBags),
		EncryptedDataBags: rendercontext.Sources(cfg.Node.EncryptedDataBags),
		Logger:            logger,
	}
	if backend != nil {
		builder.Searcher = backend
	}

	realClock := clock.Real()
	return &Node{
		Deployer: &Deployer{
			AppDir:       cfg.Node.AppDir,
			Node:         attributes,
			SetOwnership: cfg.Node.SetOwnership,
			Artifacts: &artifactstore.Store{
				LocalPath:  cfg.Node.LocalPath,
				Bucket:     bucket,
				Client:     client,
				Strict:     cfg.Artifact.Strict,
				Retries:    cfg.Artifact.Retries,
				RetryDelay: retryDelay,
				Clock:      realClock,
			},
			Records: records,
			Context: builder,
			Clock:   realClock,
			Logger:  logger,
		},
		Records:  records,
		Topology: backend,
	}, nil
}

// Close releases the topology backend.
func (n *Node) Close() error {
	if n.Topology == nil {
		return nil
	}
	return n.Topology.Close()
}
