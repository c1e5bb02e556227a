// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package deploy

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/bureau-foundation/gearbox/lib/codec"
	"github.com/bureau-foundation/gearbox/lib/layout"
)

// Receipt records the last successful deployment of an application.
// It is stored as CBOR at <app_home>/receipt.cbor.
type Receipt struct {
	Application string    `cbor:"application" json:"application"`
	Version     string    `cbor:"version" json:"version"`
	Source      string    `cbor:"source" json:"source"`
	Location    string    `cbor:"location,omitempty" json:"location,omitempty"`
	Digest      string    `cbor:"digest,omitempty" json:"digest,omitempty"`
	Outputs     []string  `cbor:"outputs,omitempty" json:"outputs,omitempty"`
	Previous    string    `cbor:"previous,omitempty" json:"previous,omitempty"`
	DeployedAt  time.Time `cbor:"deployed_at" json:"deployed_at"`
}

// WriteReceipt stores receipt for application.
func WriteReceipt(application layout.Application, receipt *Receipt, owner layout.Owner) error {
	data, err := codec.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("encoding receipt: %w", err)
	}
	return layout.WriteFile(application.ReceiptPath(), data, layout.FileMode, owner)
}

// ReadReceipt loads the receipt of application. It returns nil and no
// error if the application has never been deployed.
func ReadReceipt(application layout.Application) (*Receipt, error) {
	data, err := os.ReadFile(application.ReceiptPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading receipt: %w", err)
	}
	var receipt Receipt
	if err := codec.Unmarshal(data, &receipt); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", application.ReceiptPath(), err)
	}
	return &receipt, nil
}
