// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package topology

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/gearbox/lib/tree"
)

const schema = `
CREATE TABLE IF NOT EXISTS nodes (
	name        TEXT PRIMARY KEY,
	environment TEXT NOT NULL,
	attributes  TEXT NOT NULL DEFAULT '{}'
);
CREATE TABLE IF NOT EXISTS node_roles (
	node TEXT NOT NULL,
	role TEXT NOT NULL,
	PRIMARY KEY (node, role)
);
CREATE INDEX IF NOT EXISTS node_roles_by_role ON node_roles (role);
`

// Applied to every pooled connection before the schema.
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA foreign_keys=OFF",
	"PRAGMA temp_store=MEMORY",
}

// poolSize is small: a deployment issues a handful of sequential
// queries, and imports hold a single writer.
const poolSize = 2

// SQLite is a node inventory stored in a SQLite database.
type SQLite struct {
	pool   *sqlitex.Pool
	path   string
	logger *slog.Logger
}

// OpenSQLite opens (creating if necessary) the inventory database at
// path.
func OpenSQLite(path string, logger *slog.Logger) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("topology: sqlite inventory path is empty")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("topology: opening %s: %w", path, err)
	}
	logger.Debug("topology inventory opened", "path", path)
	return &SQLite{pool: pool, path: path, logger: logger}, nil
}

func prepareConnection(conn *sqlite.Conn) error {
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("topology: %s: %w", pragma, err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("topology: creating schema: %w", err)
	}
	return nil
}

// Search returns the matching nodes ordered by name.
func (s *SQLite) Search(ctx context.Context, query Query) (nodes []Node, err error) {
	if err := query.validate(); err != nil {
		return nil, err
	}
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("topology: search: %w", err)
	}
	defer s.pool.Put(conn)

	const statement = `
		SELECT n.name, n.environment, n.attributes,
		       (SELECT group_concat(role, char(10)) FROM
		            (SELECT role FROM node_roles WHERE node = n.name ORDER BY role))
		FROM nodes n
		JOIN node_roles r ON r.node = n.name
		WHERE r.role = ? AND (? = '' OR n.environment = ?)
		ORDER BY n.name`

	err = sqlitex.Execute(conn, statement, &sqlitex.ExecOptions{
		Args: []any{query.Role, query.Environment, query.Environment},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			node := Node{
				Name:        stmt.ColumnText(0),
				Environment: stmt.ColumnText(1),
			}
			if err := json.Unmarshal([]byte(stmt.ColumnText(2)), &node.Attributes); err != nil {
				return fmt.Errorf("node %s: decoding attributes: %w", node.Name, err)
			}
			if roles := stmt.ColumnText(3); roles != "" {
				node.Roles = strings.Split(roles, "\n")
			}
			nodes = append(nodes, node)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("topology: search %s: %w", query, err)
	}
	s.logger.Debug("topology search", "query", query.String(), "matches", len(nodes))
	return nodes, nil
}

// Put inserts or replaces nodes in one transaction. A replaced node's
// roles are replaced wholesale.
func (s *SQLite) Put(ctx context.Context, nodes ...Node) (err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("topology: put: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("topology: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	for _, node := range nodes {
		if err := putNode(conn, node); err != nil {
			return err
		}
	}
	return nil
}

func putNode(conn *sqlite.Conn, node Node) error {
	if node.Name == "" {
		return fmt.Errorf("topology: node has no name")
	}
	attributes := node.Attributes
	if !attributes.IsMapping() {
		attributes = tree.Empty()
	}
	encoded, err := json.Marshal(attributes)
	if err != nil {
		return fmt.Errorf("topology: node %s: encoding attributes: %w", node.Name, err)
	}

	err = sqlitex.Execute(conn, `
		INSERT INTO nodes (name, environment, attributes) VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			environment = excluded.environment,
			attributes = excluded.attributes`,
		&sqlitex.ExecOptions{Args: []any{node.Name, node.Environment, string(encoded)}})
	if err != nil {
		return fmt.Errorf("topology: storing node %s: %w", node.Name, err)
	}
	err = sqlitex.Execute(conn, "DELETE FROM node_roles WHERE node = ?",
		&sqlitex.ExecOptions{Args: []any{node.Name}})
	if err != nil {
		return fmt.Errorf("topology: clearing roles of %s: %w", node.Name, err)
	}
	for _, role := range node.Roles {
		err = sqlitex.Execute(conn, "INSERT OR IGNORE INTO node_roles (node, role) VALUES (?, ?)",
			&sqlitex.ExecOptions{Args: []any{node.Name, role}})
		if err != nil {
			return fmt.Errorf("topology: storing role %s of %s: %w", role, node.Name, err)
		}
	}
	return nil
}

// Close closes every pooled connection.
func (s *SQLite) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("topology: closing %s: %w", s.path, err)
	}
	return nil
}
