// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tree

// Merge overlays overlay onto base and returns the result. When both
// sides hold a mapping under the same key the two mappings are merged
// recursively; in every other case the overlay value replaces the base
// value outright. Sequences are replaced, not concatenated, and a null
// overlay replaces whatever base held.
//
// Neither argument is modified.
func Merge(base, overlay Value) Value {
	if base.kind != KindMapping || overlay.kind != KindMapping {
		return overlay
	}
	fields := make(map[string]Value, len(base.fields)+len(overlay.fields))
	for key, child := range base.fields {
		fields[key] = child
	}
	for key, child := range overlay.fields {
		if existing, ok := fields[key]; ok {
			fields[key] = Merge(existing, child)
			continue
		}
		fields[key] = child
	}
	return Value{kind: KindMapping, fields: fields}
}

// MergeAll folds layers left to right with [Merge], so later layers
// take precedence. With no layers it returns an empty mapping.
func MergeAll(layers ...Value) Value {
	result := Empty()
	for _, layer := range layers {
		result = Merge(result, layer)
	}
	return result
}

// Shallow overlays the top-level keys of overlay onto base without
// recursing: a key present in overlay replaces the base entry whole.
// Non-mapping arguments behave as in Merge.
func Shallow(base, overlay Value) Value {
	if base.kind != KindMapping || overlay.kind != KindMapping {
		return overlay
	}
	fields := make(map[string]Value, len(base.fields)+len(overlay.fields))
	for key, child := range base.fields {
		fields[key] = child
	}
	for key, child := range overlay.fields {
		fields[key] = child
	}
	return Value{kind: KindMapping, fields: fields}
}
