// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package topology

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"
	"strings"

	"github.com/bureau-foundation/gearbox/lib/tree"
)

// KindNode is the only searchable object kind.
const KindNode = "node"

// ErrUnsupportedKind is returned for queries on kinds other than
// KindNode.
var ErrUnsupportedKind = errors.New("unsupported search kind")

// Query selects nodes by role and environment. An empty Environment
// matches every environment.
type Query struct {
	Kind        string
	Role        string
	Environment string
}

// String renders the query in the search syntax of the configuration
// management server that gearbox replaces, which operators still use
// when reading logs.
func (q Query) String() string {
	var builder strings.Builder
	builder.WriteString("roles:")
	builder.WriteString(q.Role)
	if q.Environment != "" {
		builder.WriteString(" AND chef_environment:")
		builder.WriteString(q.Environment)
	}
	return builder.String()
}

func (q Query) validate() error {
	if q.Kind != KindNode {
		return fmt.Errorf("%w: %q", ErrUnsupportedKind, q.Kind)
	}
	if q.Role == "" {
		return fmt.Errorf("search has no role")
	}
	return nil
}

// Node is one host as seen by search.
type Node struct {
	Name        string     `yaml:"name" json:"name"`
	Environment string     `yaml:"environment" json:"environment"`
	Roles       []string   `yaml:"roles" json:"roles"`
	Attributes  tree.Value `yaml:"attributes" json:"attributes"`
}

// Tree returns the node's attributes as searched: its attribute
// mapping plus "name", "chef_environment" and "roles" unless the
// attributes already define them.
func (n Node) Tree() tree.Value {
	identity := tree.Mapping(map[string]tree.Value{
		"name":             tree.Scalar(n.Name),
		"chef_environment": tree.Scalar(n.Environment),
		"roles":            tree.MustFromAny(n.Roles),
	})
	attributes := n.Attributes
	if !attributes.IsMapping() {
		attributes = tree.Empty()
	}
	return tree.Merge(identity, attributes)
}

func (n Node) matches(query Query) bool {
	if query.Environment != "" && n.Environment != query.Environment {
		return false
	}
	return slices.Contains(n.Roles, query.Role)
}

// Searcher runs queries against a node inventory.
type Searcher interface {
	Search(ctx context.Context, query Query) ([]Node, error)
}

// Backend is a Searcher holding resources released by Close.
type Backend interface {
	Searcher
	io.Closer
}

// Backend names accepted by Open.
const (
	BackendNone   = "none"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Open returns the backend named by kind reading path. BackendNone (or
// an empty kind) returns nil and no error; callers treat a nil
// Searcher as "no topology available".
func Open(kind, path string, logger *slog.Logger) (Backend, error) {
	switch kind {
	case "", BackendNone:
		return nil, nil
	case BackendFile:
		inventory, err := LoadInventory(path)
		if err != nil {
			return nil, err
		}
		return inventory, nil
	case BackendSQLite:
		database, err := OpenSQLite(path, logger)
		if err != nil {
			return nil, err
		}
		return database, nil
	}
	return nil, fmt.Errorf("unknown topology backend %q (want %s, %s or %s)",
		kind, BackendNone, BackendFile, BackendSQLite)
}

func sortNodes(nodes []Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
}
