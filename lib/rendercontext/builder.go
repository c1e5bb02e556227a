// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rendercontext

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ohler55/ojg/jp"

	"github.com/bureau-foundation/gearbox/lib/layout"
	"github.com/bureau-foundation/gearbox/lib/topology"
	"github.com/bureau-foundation/gearbox/lib/tree"
)

// ErrDataSource is returned when a declared search or data source
// cannot be resolved.
var ErrDataSource = errors.New("data source unavailable")

// RecordLoader loads data bag items.
type RecordLoader interface {
	Load(bag, item string) (tree.Value, error)
	LoadEncrypted(bag, item, identityFile string) (tree.Value, error)
}

// Builder builds contexts for one node.
type Builder struct {
	// Searcher answers topology searches. Nil fails any record that
	// declares searches.
	Searcher topology.Searcher

	// Records loads plain and encrypted sources. Nil fails any
	// declared source.
	Records RecordLoader

	// Environment scopes every topology search.
	Environment string

	// DataBags and EncryptedDataBags are the node-level sources,
	// applied before the record's own.
	DataBags          Sources
	EncryptedDataBags Sources

	Logger *slog.Logger
}

// Input identifies what a context is built for.
type Input struct {
	// Node is the node's attribute tree.
	Node tree.Value

	// Application names the subtree of Node that holds
	// application-scoped attributes.
	Application string

	// Version is the version being deployed.
	Version string

	// Record is the application data record.
	Record tree.Value

	// Paths locates the application's tree for the reserved namespace.
	Paths layout.Application

	// Account owns the application's files. Empty defaults to the
	// application name.
	Account string
}

// build carries state between steps of one Build call.
type build struct {
	builder *Builder
	ctx     context.Context
	input   Input
	logger  *slog.Logger

	root    tree.Value
	app     tree.Value
	sources map[string]tree.Value
}

type step struct {
	name string
	run  func(*build) error
}

// steps is the precedence order, lowest first.
var steps = []step{
	{"node attributes", (*build).baseline},
	{"application record", (*build).mergeRecord},
	{"topology searches", (*build).runSearches},
	{"encrypted sources", (*build).loadEncrypted},
	{"plain sources", (*build).loadPlain},
	{"merge sources", (*build).mergeSources},
	{"reserved namespace", (*build).reserve},
	{"write back", (*build).writeBack},
}

// Build assembles the context for input.
func (b *Builder) Build(ctx context.Context, input Input) (*Context, error) {
	if err := layout.ValidateName("application", input.Application); err != nil {
		return nil, err
	}
	if input.Application == ReservedKey {
		return nil, fmt.Errorf("application name %q collides with the reserved namespace", ReservedKey)
	}
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}
	state := &build{
		builder: b,
		ctx:     ctx,
		input:   input,
		logger:  logger.With("application", input.Application),
		sources: make(map[string]tree.Value),
	}
	for _, current := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := current.run(state); err != nil {
			return nil, fmt.Errorf("building context for %s: %s: %w", input.Application, current.name, err)
		}
		state.logger.Debug("context step applied", "step", current.name)
	}
	return &Context{application: input.Application, root: state.root}, nil
}

func (s *build) baseline() error {
	s.root = s.input.Node
	if !s.root.IsMapping() {
		s.root = tree.Empty()
	}
	return nil
}

func (s *build) mergeRecord() error {
	app, _ := s.root.Get(s.input.Application)
	if !app.IsMapping() {
		app = tree.Empty()
	}
	record := s.input.Record
	if !record.IsMapping() {
		record = tree.Empty()
	}
	s.app = tree.Merge(app, record)
	return nil
}

func (s *build) runSearches() error {
	searches, err := ParseSearches(s.input.Record)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDataSource, err)
	}
	if len(searches) == 0 {
		return nil
	}
	if s.builder.Searcher == nil {
		return fmt.Errorf("%w: record declares %d searches but no topology backend is configured",
			ErrDataSource, len(searches))
	}
	for _, search := range searches {
		query := topology.Query{
			Kind:        topology.KindNode,
			Role:        search.Role,
			Environment: s.builder.Environment,
		}
		nodes, err := s.builder.Searcher.Search(s.ctx, query)
		if err != nil {
			return fmt.Errorf("%w: search %q (%s): %w", ErrDataSource, search.Name, query, err)
		}
		results := make([]tree.Value, 0, len(nodes))
		for _, node := range nodes {
			value, err := project(node.Tree(), search.Attribute)
			if err != nil {
				return fmt.Errorf("%w: search %q: %w", ErrDataSource, search.Name, err)
			}
			results = append(results, tree.Mapping(map[string]tree.Value{search.Attribute: value}))
		}

		var stored tree.Value
		switch {
		case search.Multiple:
			stored = tree.Sequence(results...)
		case len(results) > 0:
			stored = results[0]
		default:
			stored = tree.Null()
		}
		s.app = s.app.With(search.Name, stored)
		s.logger.Info("topology search",
			"name", search.Name,
			"query", query.String(),
			"matches", len(nodes),
			"multiple", search.Multiple,
		)
	}
	return nil
}

// project reads attribute from a searched node. Attributes starting
// with "$" are JSONPath expressions; the first match is used.
func project(node tree.Value, attribute string) (tree.Value, error) {
	if !strings.HasPrefix(attribute, "$") {
		value, _ := node.Get(attribute)
		return value, nil
	}
	expression, err := jp.ParseString(attribute)
	if err != nil {
		return tree.Value{}, fmt.Errorf("invalid jsonpath %q: %w", attribute, err)
	}
	matches := expression.Get(node.Interface())
	if len(matches) == 0 {
		return tree.Null(), nil
	}
	return tree.FromAny(matches[0])
}

func (s *build) loadEncrypted() error {
	recordSources, err := ParseSources(s.input.Record, fieldEncryptedDataBags, 3)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDataSource, err)
	}
	for _, sources := range []Sources{s.builder.EncryptedDataBags, recordSources} {
		if err := validateSources(sources, 3); err != nil {
			return err
		}
		if err := s.loadSources(sources, true); err != nil {
			return err
		}
	}
	return nil
}

func (s *build) loadPlain() error {
	recordSources, err := ParseSources(s.input.Record, fieldDataBags, 2)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDataSource, err)
	}
	for _, sources := range []Sources{s.builder.DataBags, recordSources} {
		if err := validateSources(sources, 2); err != nil {
			return err
		}
		if err := s.loadSources(sources, false); err != nil {
			return err
		}
	}
	return nil
}

func validateSources(sources Sources, maxArguments int) error {
	for _, key := range sources.keys() {
		if err := validateArguments(key, sources[key], maxArguments); err != nil {
			return fmt.Errorf("%w: %w", ErrDataSource, err)
		}
	}
	return nil
}

func (s *build) loadSources(sources Sources, encrypted bool) error {
	if len(sources) > 0 && s.builder.Records == nil {
		return fmt.Errorf("%w: data sources declared but no data bag store is configured", ErrDataSource)
	}
	for _, key := range sources.keys() {
		records := make([]tree.Value, 0, len(sources[key]))
		for _, arguments := range sources[key] {
			var (
				record tree.Value
				err    error
			)
			if encrypted {
				identity := ""
				if len(arguments) == 3 {
					identity = arguments[2]
				}
				record, err = s.builder.Records.LoadEncrypted(arguments[0], arguments[1], identity)
			} else {
				record, err = s.builder.Records.Load(arguments[0], arguments[1])
			}
			if err != nil {
				return fmt.Errorf("%w: %s: %s/%s: %w", ErrDataSource, key, arguments[0], arguments[1], err)
			}
			records = append(records, record)
		}
		s.sources[key] = tree.Sequence(records...)
		s.logger.Debug("data source loaded", "key", key, "records", len(records), "encrypted", encrypted)
	}
	return nil
}

func (s *build) loaded() tree.Value {
	return tree.Mapping(s.sources)
}

func (s *build) mergeSources() error {
	s.app = tree.Shallow(s.app, s.loaded())
	return nil
}

func (s *build) reserve() error {
	paths := s.input.Paths
	account := s.input.Account
	if account == "" {
		account = s.input.Application
	}
	reserved := tree.Mapping(map[string]tree.Value{
		"application":      tree.Scalar(s.input.Application),
		"version":          tree.Scalar(s.input.Version),
		"app_home":         tree.Scalar(paths.Home),
		"user":             tree.Scalar(account),
		"group":            tree.Scalar(account),
		"log_dir":          tree.Scalar(paths.LogDir()),
		"bin_dir":          tree.Scalar(paths.BinDir()),
		"config_dir":       tree.Scalar(paths.CurrentConfigDir()),
		"current_app_dir":  tree.Scalar(paths.CurrentLink()),
		"data_dir":         tree.Scalar(paths.DataDir()),
		"run_dir":          tree.Scalar(paths.RunDir()),
		"loaded_data_bags": s.loaded(),
	})

	// The namespace replaces any gearbox subtree from the attributes.
	s.root = tree.Merge(s.root.With(ReservedKey, reserved), reserved)
	return nil
}

func (s *build) writeBack() error {
	s.root = s.root.With(s.input.Application, s.app)
	return nil
}
