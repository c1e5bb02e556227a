// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package topology

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Inventory is an in-memory node list loaded from a file:
//
//	nodes:
//	  - name: db1
//	    environment: production
//	    roles: [db]
//	    attributes:
//	      ipaddress: 10.0.0.5
type Inventory struct {
	Nodes []Node `yaml:"nodes" json:"nodes"`
}

// LoadInventory reads an inventory file. Files ending in .json or
// .jsonc are parsed as JSON with comments; anything else as YAML.
func LoadInventory(path string) (*Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading inventory: %w", err)
	}
	inventory, err := ParseInventory(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return inventory, nil
}

// ParseInventory decodes inventory data. extension selects the format
// as in LoadInventory.
func ParseInventory(data []byte, extension string) (*Inventory, error) {
	var inventory Inventory
	switch extension {
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), &inventory); err != nil {
			return nil, fmt.Errorf("parsing inventory: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &inventory); err != nil {
			return nil, fmt.Errorf("parsing inventory: %w", err)
		}
	}
	seen := make(map[string]bool, len(inventory.Nodes))
	for index, node := range inventory.Nodes {
		if node.Name == "" {
			return nil, fmt.Errorf("nodes[%d] has no name", index)
		}
		if seen[node.Name] {
			return nil, fmt.Errorf("node %q listed twice", node.Name)
		}
		seen[node.Name] = true
	}
	return &inventory, nil
}

// Search returns the matching nodes ordered by name.
func (inventory *Inventory) Search(ctx context.Context, query Query) ([]Node, error) {
	if err := query.validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var matches []Node
	for _, node := range inventory.Nodes {
		if node.matches(query) {
			matches = append(matches, node)
		}
	}
	sortNodes(matches)
	return matches, nil
}

func (inventory *Inventory) Close() error { return nil }
