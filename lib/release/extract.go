// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package release

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bureau-foundation/gearbox/lib/layout"
)

// ErrExtraction reports an artifact that could not be unpacked:
// missing, unreadable, corrupt or unsafe.
var ErrExtraction = errors.New("extraction failed")

// Extractor unpacks artifacts into version directories.
type Extractor struct {
	// Owner receives ownership of every extracted path.
	Owner layout.Owner

	// Logger receives progress messages. Nil discards them.
	Logger *slog.Logger
}

// EnsureExtracted unpacks the archive at tarPath into versionDir
// unless versionDir already exists, in which case it returns
// (false, nil) without touching the filesystem. On failure nothing is
// left at versionDir and the error wraps [ErrExtraction].
func (e *Extractor) EnsureExtracted(tarPath, versionDir string) (bool, error) {
	logger := e.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	info, err := os.Stat(versionDir)
	switch {
	case err == nil && info.IsDir():
		logger.Debug("version already extracted", "version_dir", versionDir)
		return false, nil
	case err == nil:
		return false, fmt.Errorf("%w: %s exists and is not a directory", ErrExtraction, versionDir)
	case !errors.Is(err, os.ErrNotExist):
		return false, fmt.Errorf("%w: %w", ErrExtraction, err)
	}

	archive, err := os.Open(tarPath)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	defer archive.Close()

	staging, err := os.MkdirTemp(filepath.Dir(versionDir), "."+filepath.Base(versionDir)+".partial-")
	if err != nil {
		return false, fmt.Errorf("%w: creating staging directory: %w", ErrExtraction, err)
	}
	committed := false
	defer func() {
		if !committed {
			os.RemoveAll(staging)
		}
	}()

	stream, compression, closeStream, err := decompress(archive)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %w", ErrExtraction, tarPath, err)
	}
	defer closeStream()

	count, err := unpack(stream, staging)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %w", ErrExtraction, tarPath, err)
	}
	if err := os.Chmod(staging, layout.ConfigDirMode); err != nil {
		return false, fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	if err := layout.ChownTree(staging, e.owner()); err != nil {
		return false, fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	if err := os.Rename(staging, versionDir); err != nil {
		return false, fmt.Errorf("%w: moving staging directory into place: %w", ErrExtraction, err)
	}
	committed = true

	logger.Info("artifact extracted",
		"tarball", tarPath,
		"version_dir", versionDir,
		"compression", string(compression),
		"entries", count,
	)
	return true, nil
}

func (e *Extractor) owner() layout.Owner {
	if e.Owner == nil {
		return layout.Unowned("")
	}
	return e.Owner
}

// unpack writes every member of the tar stream below destination and
// returns the number of members written. Every filesystem operation
// goes through an [os.Root] opened on destination, so no member can
// reach outside it even through links created earlier in the stream.
// Directory modes are applied after all members so read-only
// directories can still be populated.
func unpack(stream io.Reader, destination string) (int, error) {
	root, err := os.OpenRoot(destination)
	if err != nil {
		return 0, err
	}
	defer root.Close()

	reader := tar.NewReader(stream)
	symlinks := map[string]bool{}
	directoryModes := map[string]os.FileMode{}
	count := 0

	for {
		header, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, fmt.Errorf("reading archive: %w", err)
		}

		name, err := memberName(header.Name)
		if err != nil {
			return count, err
		}
		if name == "" {
			continue
		}
		if crossesSymlink(name, symlinks) {
			return count, fmt.Errorf("member %q is below a symlink in the same archive", header.Name)
		}
		target := filepath.FromSlash(name)
		mode := header.FileInfo().Mode().Perm()

		switch header.Typeflag {
		case tar.TypeDir:
			if err := root.MkdirAll(target, 0o755); err != nil {
				return count, err
			}
			directoryModes[target] = mode

		case tar.TypeReg:
			if err := writeMember(root, reader, target, mode); err != nil {
				return count, err
			}
			delete(symlinks, name)

		case tar.TypeSymlink:
			if err := checkSymlink(name, header.Linkname, symlinks); err != nil {
				return count, err
			}
			if err := replaceable(root, target); err != nil {
				return count, err
			}
			if err := root.Symlink(header.Linkname, target); err != nil {
				return count, err
			}
			symlinks[name] = true

		case tar.TypeLink:
			linked, err := memberName(header.Linkname)
			if err != nil || linked == "" {
				return count, fmt.Errorf("hard link %q has unsafe target %q", header.Name, header.Linkname)
			}
			if symlinks[linked] || crossesSymlink(linked, symlinks) {
				return count, fmt.Errorf("hard link %q target %q is a symlink in the same archive", header.Name, header.Linkname)
			}
			if err := replaceable(root, target); err != nil {
				return count, err
			}
			if err := root.Link(filepath.FromSlash(linked), target); err != nil {
				return count, err
			}
			delete(symlinks, name)

		default:
			// Devices, FIFOs and PAX global headers carry nothing a
			// release needs.
			continue
		}
		count++
	}

	for directory, mode := range directoryModes {
		if err := root.Chmod(directory, mode); err != nil {
			return count, err
		}
	}
	return count, nil
}

// memberName cleans an archive member name and rejects names that
// would land outside the destination. The archive root ("./") yields
// the empty string.
func memberName(raw string) (string, error) {
	if strings.HasPrefix(raw, "/") || filepath.IsAbs(raw) {
		return "", fmt.Errorf("member %q has an absolute path", raw)
	}
	cleaned := path.Clean(raw)
	if cleaned == "." {
		return "", nil
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("member %q escapes the archive root", raw)
	}
	return cleaned, nil
}

// checkSymlink rejects links whose target leaves the archive root. The
// target is resolved one component at a time: ".." after a component
// that is itself an archive symlink is resolved by the kernel against
// that link's target, so such targets are refused outright.
func checkSymlink(name, linkname string, symlinks map[string]bool) error {
	if path.IsAbs(linkname) {
		return fmt.Errorf("symlink %q has absolute target %q", name, linkname)
	}
	var resolved []string
	if parent := path.Dir(name); parent != "." {
		resolved = strings.Split(parent, "/")
	}
	components := strings.Split(linkname, "/")
	for index, component := range components {
		switch component {
		case "", ".":
			continue
		case "..":
			if len(resolved) == 0 {
				return fmt.Errorf("symlink %q target %q escapes the archive root", name, linkname)
			}
			resolved = resolved[:len(resolved)-1]
		default:
			resolved = append(resolved, component)
			if index < len(components)-1 && symlinks[strings.Join(resolved, "/")] {
				return fmt.Errorf("symlink %q target %q passes through symlink %q", name, linkname, strings.Join(resolved, "/"))
			}
		}
	}
	return nil
}

// crossesSymlink reports whether any proper ancestor of name is a
// symlink created earlier from the same archive.
func crossesSymlink(name string, symlinks map[string]bool) bool {
	for parent := path.Dir(name); parent != "." && parent != "/"; parent = path.Dir(parent) {
		if symlinks[parent] {
			return true
		}
	}
	return false
}

// replaceable creates the parent of target and removes any
// non-directory already at target, so a later member replaces an
// earlier one instead of writing through it.
func replaceable(root *os.Root, target string) error {
	if err := root.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	info, err := root.Lstat(target)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("member %q replaces a directory", filepath.ToSlash(target))
	}
	return root.Remove(target)
}

func writeMember(root *os.Root, reader io.Reader, target string, mode os.FileMode) error {
	if err := replaceable(root, target); err != nil {
		return err
	}
	file, err := root.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(file, reader); err != nil {
		file.Close()
		return fmt.Errorf("writing %s: %w", target, err)
	}
	return file.Close()
}
