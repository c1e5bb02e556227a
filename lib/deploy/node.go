// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package deploy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/gearbox/lib/tree"
)

// LoadAttributes reads a node attribute file. JSON files (.json,
// .jsonc) may carry comments; anything else is parsed as YAML. An
// empty path yields an empty mapping.
func LoadAttributes(path string) (tree.Value, error) {
	if path == "" {
		return tree.Empty(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return tree.Value{}, fmt.Errorf("reading node attributes: %w", err)
	}

	var attributes tree.Value
	switch filepath.Ext(path) {
	case ".json", ".jsonc":
		err = json.Unmarshal(jsonc.ToJSON(data), &attributes)
	default:
		err = yaml.Unmarshal(data, &attributes)
	}
	if err != nil {
		return tree.Value{}, fmt.Errorf("parsing node attributes %s: %w", path, err)
	}
	if attributes.IsNull() {
		return tree.Empty(), nil
	}
	if !attributes.IsMapping() {
		return tree.Value{}, fmt.Errorf("node attributes %s are a %s, want a mapping", path, attributes.Kind())
	}
	return attributes, nil
}
