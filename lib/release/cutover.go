// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package release

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/bureau-foundation/gearbox/lib/layout"
)

// ErrCutover reports that the release pointer could not be moved to
// the new version.
var ErrCutover = errors.New("release pointer update failed")

// CurrentLinkName is the release pointer's name inside the
// application directory.
const CurrentLinkName = "current"

// Cutover points applicationDir/current at versionDir and returns the
// previous link target ("" if there was none). The link target is
// relative to applicationDir when versionDir lies below it. The old
// link is replaced by rename, never removed first.
func Cutover(applicationDir, versionDir string, owner layout.Owner) (string, error) {
	info, err := os.Stat(versionDir)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCutover, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrCutover, versionDir)
	}

	link := filepath.Join(applicationDir, CurrentLinkName)
	previous, err := Current(applicationDir)
	if err != nil {
		return "", err
	}

	target := versionDir
	if relative, err := filepath.Rel(applicationDir, versionDir); err == nil && filepath.IsLocal(relative) {
		target = relative
	}
	if previous == target {
		return previous, nil
	}

	staging := filepath.Join(applicationDir, "."+CurrentLinkName+".next-"+strconv.Itoa(os.Getpid()))
	if err := os.Remove(staging); err != nil && !errors.Is(err, os.ErrNotExist) {
		return previous, fmt.Errorf("%w: clearing stale %s: %w", ErrCutover, staging, err)
	}
	if err := os.Symlink(target, staging); err != nil {
		return previous, fmt.Errorf("%w: %w", ErrCutover, err)
	}
	if owner != nil {
		if err := owner.Chown(staging); err != nil {
			os.Remove(staging)
			return previous, fmt.Errorf("%w: %w", ErrCutover, err)
		}
	}
	if err := os.Rename(staging, link); err != nil {
		os.Remove(staging)
		return previous, fmt.Errorf("%w: %w", ErrCutover, err)
	}
	return previous, nil
}

// Current returns the target of applicationDir/current, or "" when
// the link does not exist. A `current` that exists but is not a
// symlink is an error wrapping [ErrCutover]: gearbox never replaces a
// directory or file it did not create.
func Current(applicationDir string) (string, error) {
	link := filepath.Join(applicationDir, CurrentLinkName)
	info, err := os.Lstat(link)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCutover, err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return "", fmt.Errorf("%w: %s exists and is not a symlink", ErrCutover, link)
	}
	target, err := os.Readlink(link)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCutover, err)
	}
	return target, nil
}
