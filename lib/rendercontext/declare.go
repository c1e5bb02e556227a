// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rendercontext

import (
	"fmt"
	"sort"

	"github.com/bureau-foundation/gearbox/lib/tree"
)

// Search declares a topology query whose projected results are stored
// under Name in the application subtree.
type Search struct {
	Role      string
	Attribute string
	Name      string
	Multiple  bool
}

// Sources maps a context key to the argument sets of the records
// loaded into it.
type Sources map[string][][]string

// keys returns the source keys in processing order.
func (s Sources) keys() []string {
	keys := make([]string, 0, len(s))
	for key := range s {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Record fields read by the builder.
const (
	fieldSearches          = "searches"
	fieldDataBags          = "data_bags"
	fieldEncryptedDataBags = "encrypted_data_bags"
)

// ParseSearches reads the "searches" list of an application record.
// An absent or null list is empty.
func ParseSearches(record tree.Value) ([]Search, error) {
	list, ok := record.Get(fieldSearches)
	if !ok || list.IsNull() {
		return nil, nil
	}
	if list.Kind() != tree.KindSequence {
		return nil, fmt.Errorf("%s is a %s, want a sequence", fieldSearches, list.Kind())
	}
	searches := make([]Search, 0, list.Len())
	for index, item := range list.Items() {
		if !item.IsMapping() {
			return nil, fmt.Errorf("%s[%d] is a %s, want a mapping", fieldSearches, index, item.Kind())
		}
		search := Search{
			Role:      text(item, "role"),
			Attribute: text(item, "attribute"),
			Name:      text(item, "name"),
		}
		if multiple, ok := item.Get("multiple"); ok {
			flag, isBool := multiple.Raw().(bool)
			if !isBool && !multiple.IsNull() {
				return nil, fmt.Errorf("%s[%d].multiple is not a boolean", fieldSearches, index)
			}
			search.Multiple = flag
		}
		switch {
		case search.Role == "":
			return nil, fmt.Errorf("%s[%d] has no role", fieldSearches, index)
		case search.Attribute == "":
			return nil, fmt.Errorf("%s[%d] has no attribute", fieldSearches, index)
		case search.Name == "":
			return nil, fmt.Errorf("%s[%d] has no name", fieldSearches, index)
		}
		searches = append(searches, search)
	}
	return searches, nil
}

// ParseSources reads a data source mapping (the "data_bags" or
// "encrypted_data_bags" field of a record). maxArguments is 2 for
// plain sources and 3 for encrypted ones.
func ParseSources(record tree.Value, field string, maxArguments int) (Sources, error) {
	declaration, ok := record.Get(field)
	if !ok || declaration.IsNull() {
		return nil, nil
	}
	if !declaration.IsMapping() {
		return nil, fmt.Errorf("%s is a %s, want a mapping", field, declaration.Kind())
	}
	sources := make(Sources, declaration.Len())
	for _, key := range declaration.Keys() {
		list, _ := declaration.Get(key)
		if list.Kind() != tree.KindSequence {
			return nil, fmt.Errorf("%s.%s is a %s, want a sequence", field, key, list.Kind())
		}
		argumentSets := make([][]string, 0, list.Len())
		for index, entry := range list.Items() {
			arguments, err := stringList(entry)
			if err != nil {
				return nil, fmt.Errorf("%s.%s[%d]: %w", field, key, index, err)
			}
			argumentSets = append(argumentSets, arguments)
		}
		sources[key] = argumentSets
		if err := validateArguments(key, argumentSets, maxArguments); err != nil {
			return nil, fmt.Errorf("%s: %w", field, err)
		}
	}
	return sources, nil
}

func validateArguments(key string, argumentSets [][]string, maxArguments int) error {
	for index, arguments := range argumentSets {
		if len(arguments) < 2 || len(arguments) > maxArguments {
			return fmt.Errorf("%s[%d] has %d arguments, want 2 to %d (bag, item[, identity file])",
				key, index, len(arguments), maxArguments)
		}
	}
	return nil
}

func stringList(value tree.Value) ([]string, error) {
	if value.Kind() != tree.KindSequence {
		return nil, fmt.Errorf("is a %s, want a sequence of strings", value.Kind())
	}
	result := make([]string, 0, value.Len())
	for _, item := range value.Items() {
		itemText, ok := item.Text()
		if !ok {
			return nil, fmt.Errorf("argument %v is not a string", item.Raw())
		}
		result = append(result, itemText)
	}
	return result, nil
}

func text(value tree.Value, key string) string {
	child, ok := value.Get(key)
	if !ok {
		return ""
	}
	result, _ := child.Text()
	return result
}
