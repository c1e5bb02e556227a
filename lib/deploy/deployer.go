// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/gearbox/lib/artifactstore"
	"github.com/bureau-foundation/gearbox/lib/clock"
	"github.com/bureau-foundation/gearbox/lib/layout"
	"github.com/bureau-foundation/gearbox/lib/release"
	"github.com/bureau-foundation/gearbox/lib/render"
	"github.com/bureau-foundation/gearbox/lib/rendercontext"
	"github.com/bureau-foundation/gearbox/lib/tree"
)

// RecordBag is the data bag holding one record per application.
const RecordBag = "gearbox"

// Request is one deployment.
type Request struct {
	Application string
	Version     string

	// URL, Bucket and Digest are passed to the artifact store.
	URL    string
	Bucket string
	Digest string
}

// Result describes a completed deployment.
type Result struct {
	Application string
	Version     string
	Artifact    artifactstore.Artifact

	// Extracted is false when the version directory already existed.
	Extracted bool

	// Rendered lists the compiled configuration files.
	Rendered []render.Mapping

	// Previous is the release pointer's target before cutover.
	Previous string

	Receipt *Receipt
}

// Preview is what a render would use and produce.
type Preview struct {
	Plan    *render.Plan
	Context *rendercontext.Context
}

// Deployer deploys applications under AppDir.
type Deployer struct {
	// AppDir is the root of every application tree.
	AppDir string

	// Node is the node's attribute tree.
	Node tree.Value

	// SetOwnership chowns application files to the account named
	// after the application. Otherwise files keep the invoking user.
	SetOwnership bool

	Artifacts *artifactstore.Store
	Records   rendercontext.RecordLoader
	Context   *rendercontext.Builder

	Clock  clock.Clock
	Logger *slog.Logger
}

// session is the per-application view of a Deployer.
type session struct {
	deployer *Deployer
	paths    layout.Application
	version  string
	owner    layout.Owner
	logger   *slog.Logger
}

func (d *Deployer) open(application, version string) (*session, error) {
	fail := func(err error) error {
		return &Error{Stage: StageLayout, Application: application, Version: version, Err: err}
	}
	paths, err := layout.New(d.AppDir, application)
	if err != nil {
		return nil, fail(err)
	}
	if err := layout.ValidateName("version", version); err != nil {
		return nil, fail(err)
	}

	var owner layout.Owner = layout.Unowned(application)
	if d.SetOwnership {
		account, err := layout.LookupAccount(application)
		if err != nil {
			return nil, fail(err)
		}
		owner = account
	}

	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &session{
		deployer: d,
		paths:    paths,
		version:  version,
		owner:    owner,
		logger:   logger.With("application", application, "version", version),
	}, nil
}

func (s *session) fail(stage Stage, err error) error {
	return &Error{Stage: stage, Application: s.paths.Name, Version: s.version, Err: err}
}

// Deploy runs every stage for request.
func (d *Deployer) Deploy(ctx context.Context, request Request) (*Result, error) {
	s, err := d.open(request.Application, request.Version)
	if err != nil {
		return nil, err
	}
	result := &Result{Application: request.Application, Version: request.Version}
	s.logger.Info("deployment started")

	store := d.artifactStore(s)
	result.Artifact, err = store.Resolve(ctx, s.paths, s.version, artifactstore.Request{
		URL:    request.URL,
		Bucket: request.Bucket,
		Digest: request.Digest,
	})
	if err != nil {
		return nil, s.fail(StageArtifact, err)
	}

	extractor := &release.Extractor{Owner: s.owner, Logger: s.logger}
	result.Extracted, err = extractor.EnsureExtracted(result.Artifact.Path, s.paths.VersionDir(s.version))
	if err != nil {
		return nil, s.fail(StageExtract, err)
	}

	result.Rendered, err = s.render(ctx)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, s.fail(StageCutover, err)
	}
	result.Previous, err = release.Cutover(s.paths.Home, s.paths.VersionDir(s.version), s.owner)
	if err != nil {
		s.logger.Error("release pointer not moved; the new version is prepared but not live",
			"error", err, "current", s.paths.CurrentLink())
		return nil, s.fail(StageCutover, err)
	}

	result.Receipt = &Receipt{
		Application: request.Application,
		Version:     request.Version,
		Source:      string(result.Artifact.Source),
		Location:    result.Artifact.Location,
		Digest:      result.Artifact.Digest,
		Previous:    result.Previous,
		DeployedAt:  d.clock().Now().UTC(),
	}
	for _, mapping := range result.Rendered {
		result.Receipt.Outputs = append(result.Receipt.Outputs, mapping.Output)
	}
	if err := WriteReceipt(s.paths, result.Receipt, s.owner); err != nil {
		s.logger.Warn("deployment succeeded but the receipt was not written", "error", err)
	}

	s.logger.Info("deployment complete",
		"previous", result.Previous,
		"extracted", result.Extracted,
		"rendered", len(result.Rendered),
		"digest", result.Artifact.Digest,
	)
	return result, nil
}

// Rerender rebuilds the context and recompiles configuration for an
// extracted version. The artifact store and release pointer are not
// touched.
func (d *Deployer) Rerender(ctx context.Context, application, version string) ([]render.Mapping, error) {
	s, err := d.open(application, version)
	if err != nil {
		return nil, err
	}
	if err := s.requireExtracted(); err != nil {
		return nil, err
	}
	return s.render(ctx)
}

// Preview builds the context and discovers templates for an extracted
// version without writing anything.
func (d *Deployer) Preview(ctx context.Context, application, version string) (*Preview, error) {
	s, err := d.open(application, version)
	if err != nil {
		return nil, err
	}
	if err := s.requireExtracted(); err != nil {
		return nil, err
	}
	built, err := s.buildContext(ctx)
	if err != nil {
		return nil, err
	}
	plan, err := render.Discover(s.paths.TemplateDir(version), s.paths.ConfigDir(version))
	if err != nil {
		return nil, s.fail(StageRender, err)
	}
	return &Preview{Plan: plan, Context: built}, nil
}

// BuildContext builds the template context for application without
// requiring an extracted version.
func (d *Deployer) BuildContext(ctx context.Context, application, version string) (*rendercontext.Context, error) {
	s, err := d.open(application, version)
	if err != nil {
		return nil, err
	}
	return s.buildContext(ctx)
}

func (s *session) requireExtracted() error {
	info, err := os.Stat(s.paths.VersionDir(s.version))
	if err == nil && info.IsDir() {
		return nil
	}
	if err == nil {
		err = fmt.Errorf("%s is not a directory", s.paths.VersionDir(s.version))
	}
	return s.fail(StageExtract, fmt.Errorf("%w: version %s is not extracted: %w", release.ErrExtraction, s.version, err))
}

// render compiles configuration into the version's gbconfig directory.
func (s *session) render(ctx context.Context) ([]render.Mapping, error) {
	configDir := s.paths.ConfigDir(s.version)
	directories := []string{configDir}
	for _, subdirectory := range layout.ConfigSubdirs {
		directories = append(directories, filepath.Join(configDir, subdirectory))
	}
	for _, directory := range directories {
		if err := layout.EnsureDir(directory, layout.ConfigDirMode, s.owner); err != nil {
			return nil, s.fail(StageRender, err)
		}
	}

	built, err := s.buildContext(ctx)
	if err != nil {
		return nil, err
	}

	renderer := &render.Renderer{Owner: s.owner, Logger: s.logger}
	rendered, err := renderer.Render(s.paths.TemplateDir(s.version), configDir, built.View())
	if err != nil {
		return nil, s.fail(StageRender, err)
	}
	return rendered, nil
}

func (s *session) buildContext(ctx context.Context) (*rendercontext.Context, error) {
	d := s.deployer
	if d.Records == nil {
		return nil, s.fail(StageRecord, fmt.Errorf("%w: no data bag store configured", rendercontext.ErrDataSource))
	}
	record, err := d.Records.Load(RecordBag, s.paths.Name)
	if err != nil {
		return nil, s.fail(StageRecord, fmt.Errorf("%w: application record %s/%s: %w",
			rendercontext.ErrDataSource, RecordBag, s.paths.Name, err))
	}

	builder := d.Context
	if builder == nil {
		builder = &rendercontext.Builder{Records: d.Records}
	}
	built, err := builder.Build(ctx, rendercontext.Input{
		Node:        d.Node,
		Application: s.paths.Name,
		Version:     s.version,
		Record:      record,
		Paths:       s.paths,
		Account:     s.owner.Account(),
	})
	if err != nil {
		return nil, s.fail(StageContext, err)
	}
	return built, nil
}

func (d *Deployer) artifactStore(s *session) *artifactstore.Store {
	store := &artifactstore.Store{}
	if d.Artifacts != nil {
		copied := *d.Artifacts
		store = &copied
	}
	store.Owner = s.owner
	store.Logger = s.logger
	if store.Clock == nil {
		store.Clock = d.clock()
	}
	return store
}

func (d *Deployer) clock() clock.Clock {
	if d.Clock == nil {
		return clock.Real()
	}
	return d.Clock
}

// Status describes an application's tree.
type Status struct {
	Application string `json:"application"`
	Home        string `json:"home"`

	// Current is the release pointer's target, "" if none.
	Current string `json:"current"`

	// Versions lists extracted version directories.
	Versions []string `json:"versions"`

	// Receipt is the last recorded deployment, nil if none.
	Receipt *Receipt `json:"receipt"`
}

// Status reads the state of application on this node.
func (d *Deployer) Status(application string) (*Status, error) {
	paths, err := layout.New(d.AppDir, application)
	if err != nil {
		return nil, err
	}
	status := &Status{Application: application, Home: paths.Home}

	status.Current, err = release.Current(paths.Home)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(paths.VersionsDir())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("listing versions: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() && layout.ValidateName("version", entry.Name()) == nil {
			status.Versions = append(status.Versions, entry.Name())
		}
	}
	status.Receipt, err = ReadReceipt(paths)
	if err != nil {
		return nil, err
	}
	return status, nil
}
