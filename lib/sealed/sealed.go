// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"filippo.io/age"
	"filippo.io/age/armor"

	"github.com/bureau-foundation/gearbox/lib/secret"
)

// armorHeader begins every ASCII-armored age file.
const armorHeader = "-----BEGIN AGE ENCRYPTED FILE-----"

// Seal encrypts plaintext to one or more age public keys (age1...)
// and returns an armored age file.
func Seal(plaintext []byte, recipientKeys []string) ([]byte, error) {
	if len(recipientKeys) == 0 {
		return nil, fmt.Errorf("at least one recipient is required")
	}
	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return nil, fmt.Errorf("parsing recipient %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}

	var output bytes.Buffer
	armored := armor.NewWriter(&output)
	writer, err := age.Encrypt(armored, recipients...)
	if err != nil {
		return nil, fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return nil, fmt.Errorf("encrypting: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalizing age encryption: %w", err)
	}
	if err := armored.Close(); err != nil {
		return nil, fmt.Errorf("finalizing armor: %w", err)
	}
	return output.Bytes(), nil
}

// Identities is a set of age identities able to open sealed records.
type Identities struct {
	source     string
	identities []age.Identity
}

// LoadIdentities reads an age identity file. Blank lines and lines
// starting with # are ignored.
func LoadIdentities(path string) (*Identities, error) {
	buffer, err := secret.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading identities: %w", err)
	}
	defer buffer.Close()

	identities, err := age.ParseIdentities(bytes.NewReader(buffer.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("parsing identities in %s: %w", path, err)
	}
	return &Identities{source: path, identities: identities}, nil
}

// ParseIdentities parses identities from a key string, for callers
// that already hold key material.
func ParseIdentities(keys string) (*Identities, error) {
	identities, err := age.ParseIdentities(bytes.NewReader([]byte(keys)))
	if err != nil {
		return nil, fmt.Errorf("parsing identities: %w", err)
	}
	return &Identities{source: "inline", identities: identities}, nil
}

// Source returns the path the identities were loaded from.
func (ids *Identities) Source() string { return ids.source }

// Open decrypts an age file and returns the plaintext in a
// secret.Buffer. The caller must Close the buffer. An empty plaintext
// is returned as a nil buffer and no error.
func (ids *Identities) Open(ciphertext []byte) (*secret.Buffer, error) {
	var source io.Reader = bytes.NewReader(ciphertext)
	if bytes.HasPrefix(bytes.TrimLeft(ciphertext, " \t\r\n"), []byte(armorHeader)) {
		source = armor.NewReader(bufio.NewReader(bytes.NewReader(bytes.TrimLeft(ciphertext, " \t\r\n"))))
	}

	reader, err := age.Decrypt(source, ids.identities...)
	if err != nil {
		return nil, fmt.Errorf("decrypting with identities from %s: %w", ids.source, err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		secret.Zero(plaintext)
		return nil, fmt.Errorf("reading decrypted plaintext: %w", err)
	}
	if len(plaintext) == 0 {
		return nil, nil
	}
	return secret.NewFromBytes(plaintext)
}

// ParseRecipient validates an age public key.
func ParseRecipient(key string) error {
	if _, err := age.ParseX25519Recipient(key); err != nil {
		return fmt.Errorf("invalid age public key: %w", err)
	}
	return nil
}
