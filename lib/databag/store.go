// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package databag

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/gearbox/lib/layout"
	"github.com/bureau-foundation/gearbox/lib/sealed"
	"github.com/bureau-foundation/gearbox/lib/tree"
)

// ErrNotFound is returned when no file exists for a bag and item.
var ErrNotFound = errors.New("data bag item not found")

// File extensions recognized under a bag directory, in lookup order
// for plain records.
const (
	ExtensionJSON      = ".json"
	ExtensionYAML      = ".yaml"
	ExtensionEncrypted = ".age"
)

// Store reads records from Root.
type Store struct {
	Root string

	// IdentityFile is the age identity file used by LoadEncrypted when
	// the caller names none.
	IdentityFile string

	Logger *slog.Logger

	mutex      sync.Mutex
	identities map[string]*sealed.Identities
}

// Path returns the file for bag and item with the given extension.
func (s *Store) Path(bag, item, extension string) (string, error) {
	if err := layout.ValidateName("data bag", bag); err != nil {
		return "", err
	}
	if err := layout.ValidateName("data bag item", item); err != nil {
		return "", err
	}
	if s.Root == "" {
		return "", fmt.Errorf("data bag root is not configured")
	}
	return filepath.Join(s.Root, bag, item+extension), nil
}

// Load reads the plain record bag/item. The record must decode to a
// mapping.
func (s *Store) Load(bag, item string) (tree.Value, error) {
	for _, extension := range []string{ExtensionJSON, ExtensionYAML} {
		path, err := s.Path(bag, item, extension)
		if err != nil {
			return tree.Value{}, err
		}
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return tree.Value{}, fmt.Errorf("reading %s: %w", path, err)
		}
		var value tree.Value
		if extension == ExtensionJSON {
			value, err = decodeJSON(data)
		} else {
			value, err = decodeYAML(data)
		}
		if err != nil {
			return tree.Value{}, fmt.Errorf("%s: %w", path, err)
		}
		s.logger().Debug("loaded data bag item", "bag", bag, "item", item, "path", path)
		return value, nil
	}
	return tree.Value{}, fmt.Errorf("%w: %s/%s under %s", ErrNotFound, bag, item, s.Root)
}

// LoadEncrypted reads and decrypts the record bag/item. identityFile
// overrides the store's default identity file when non-empty.
func (s *Store) LoadEncrypted(bag, item, identityFile string) (tree.Value, error) {
	path, err := s.Path(bag, item, ExtensionEncrypted)
	if err != nil {
		return tree.Value{}, err
	}
	ciphertext, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return tree.Value{}, fmt.Errorf("%w: encrypted %s/%s under %s", ErrNotFound, bag, item, s.Root)
	}
	if err != nil {
		return tree.Value{}, fmt.Errorf("reading %s: %w", path, err)
	}

	if identityFile == "" {
		identityFile = s.IdentityFile
	}
	if identityFile == "" {
		return tree.Value{}, fmt.Errorf("decrypting %s: no identity file configured", path)
	}
	identities, err := s.loadIdentities(identityFile)
	if err != nil {
		return tree.Value{}, err
	}

	plaintext, err := identities.Open(ciphertext)
	if err != nil {
		return tree.Value{}, fmt.Errorf("%s: %w", path, err)
	}
	if plaintext == nil {
		return tree.Value{}, fmt.Errorf("%s: decrypted record is empty", path)
	}
	defer plaintext.Close()

	value, err := decodeJSON(plaintext.Bytes())
	if err != nil {
		return tree.Value{}, fmt.Errorf("%s: %w", path, err)
	}
	s.logger().Debug("decrypted data bag item",
		"bag", bag, "item", item, "identities", identities.Source())
	return value, nil
}

// WriteEncrypted seals plaintext to recipients and writes it as the
// encrypted record bag/item. The plaintext must be a JSON mapping.
func (s *Store) WriteEncrypted(bag, item string, plaintext []byte, recipients []string) (string, error) {
	if _, err := decodeJSON(plaintext); err != nil {
		return "", fmt.Errorf("record plaintext: %w", err)
	}
	path, err := s.Path(bag, item, ExtensionEncrypted)
	if err != nil {
		return "", err
	}
	ciphertext, err := sealed.Seal(plaintext, recipients)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), layout.ConfigDirMode); err != nil {
		return "", fmt.Errorf("creating bag directory: %w", err)
	}
	if err := layout.WriteFile(path, ciphertext, layout.FileMode, layout.Unowned("")); err != nil {
		return "", err
	}
	return path, nil
}

// loadIdentities parses each identity file once per Store.
func (s *Store) loadIdentities(path string) (*sealed.Identities, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if identities, ok := s.identities[path]; ok {
		return identities, nil
	}
	identities, err := sealed.LoadIdentities(path)
	if err != nil {
		return nil, err
	}
	if s.identities == nil {
		s.identities = make(map[string]*sealed.Identities)
	}
	s.identities[path] = identities
	return identities, nil
}

func (s *Store) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func decodeJSON(data []byte) (tree.Value, error) {
	var value tree.Value
	if err := json.Unmarshal(jsonc.ToJSON(data), &value); err != nil {
		return tree.Value{}, fmt.Errorf("parsing record: %w", err)
	}
	return requireMapping(value)
}

func decodeYAML(data []byte) (tree.Value, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return tree.Value{}, fmt.Errorf("parsing record: %w", err)
	}
	value, err := tree.FromAny(raw)
	if err != nil {
		return tree.Value{}, fmt.Errorf("parsing record: %w", err)
	}
	return requireMapping(value)
}

func requireMapping(value tree.Value) (tree.Value, error) {
	if !value.IsMapping() {
		return tree.Value{}, fmt.Errorf("record is a %s, want a mapping", value.Kind())
	}
	return value, nil
}
