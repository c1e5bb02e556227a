// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package layout

import (
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
)

// Owner assigns ownership of paths created for an application.
type Owner interface {
	// Chown sets the owner of path without following symlinks.
	Chown(path string) error

	// Account returns the account name used in logs and in the
	// reserved template namespace.
	Account() string
}

// Account owns files as a system account and group. Accounts are
// created by the host's provisioning layer; Lookup only resolves them.
type Account struct {
	name string
	uid  int
	gid  int
}

// LookupAccount resolves the account named name and the group of the
// same name. If no such group exists the account's primary group is
// used.
func LookupAccount(name string) (*Account, error) {
	account, err := user.Lookup(name)
	if err != nil {
		return nil, fmt.Errorf("looking up account %q: %w", name, err)
	}
	uid, err := strconv.Atoi(account.Uid)
	if err != nil {
		return nil, fmt.Errorf("account %q has non-numeric uid %q", name, account.Uid)
	}
	groupID := account.Gid
	if group, err := user.LookupGroup(name); err == nil {
		groupID = group.Gid
	}
	gid, err := strconv.Atoi(groupID)
	if err != nil {
		return nil, fmt.Errorf("group for %q has non-numeric gid %q", name, groupID)
	}
	return &Account{name: name, uid: uid, gid: gid}, nil
}

func (a *Account) Account() string { return a.name }

func (a *Account) Chown(path string) error {
	if err := os.Lchown(path, a.uid, a.gid); err != nil {
		return fmt.Errorf("chown %s to %s: %w", path, a.name, err)
	}
	return nil
}

// Unowned is an Owner that leaves ownership with the invoking user.
// It is used when node.set_ownership is disabled, for unprivileged
// runs and tests.
type Unowned string

func (u Unowned) Account() string       { return string(u) }
func (Unowned) Chown(path string) error { return nil }

// EnsureDir creates path (and missing parents) and then sets its mode
// and owner. Mode is applied explicitly because mkdir is subject to
// the process umask.
func EnsureDir(path string, mode os.FileMode, owner Owner) error {
	if err := os.MkdirAll(path, mode); err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := os.Chmod(path, mode); err != nil {
		return fmt.Errorf("setting mode of %s: %w", path, err)
	}
	return owner.Chown(path)
}

// ChownTree applies owner to root and everything below it.
func ChownTree(root string, owner Owner) error {
	return filepath.WalkDir(root, func(path string, _ fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		return owner.Chown(path)
	})
}

// WriteFile writes data to path through a temporary file in the same
// directory and renames it into place, so readers see either the old
// content or the new content and never a truncated file.
func WriteFile(path string, data []byte, mode os.FileMode, owner Owner) error {
	temporaryPath, err := StageFile(path, data, mode, owner)
	if err != nil {
		return err
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming %s into place: %w", path, err)
	}
	return nil
}

// StageFile writes data to a temporary file next to path, with its
// final mode and owner, and returns the temporary path. The caller
// renames it over path or removes it.
func StageFile(path string, data []byte, mode os.FileMode, owner Owner) (staged string, err error) {
	directory := filepath.Dir(path)
	temporary, err := os.CreateTemp(directory, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("creating temporary file for %s: %w", path, err)
	}
	temporaryPath := temporary.Name()
	defer func() {
		if err != nil {
			os.Remove(temporaryPath)
		}
	}()

	if _, err := temporary.Write(data); err != nil {
		temporary.Close()
		return "", fmt.Errorf("writing %s: %w", temporaryPath, err)
	}
	if err := temporary.Chmod(mode); err != nil {
		temporary.Close()
		return "", fmt.Errorf("setting mode of %s: %w", temporaryPath, err)
	}
	if err := temporary.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", temporaryPath, err)
	}
	if err := owner.Chown(temporaryPath); err != nil {
		return "", err
	}
	return temporaryPath, nil
}
