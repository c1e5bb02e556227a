// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package artifactstore

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/zeebo/blake3"
)

// digestPrefix names the hash in formatted digests.
const digestPrefix = "blake3:"

// DigestFile returns the formatted BLAKE3 digest of the file at path.
func DigestFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return digestPrefix + hex.EncodeToString(hasher.Sum(nil)), nil
}

// DigestsEqual compares two digests, accepting either with or without
// the "blake3:" prefix. Hex case is ignored.
func DigestsEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimPrefix(a, digestPrefix), strings.TrimPrefix(b, digestPrefix))
}

func digestIfPresent(path string) (string, error) {
	digest, err := DigestFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	return digest, err
}
