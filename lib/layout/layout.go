// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// File and directory modes used across an application tree.
const (
	// DirMode applies to the application's base directories: owner and
	// group read-write-execute, others read-execute.
	DirMode os.FileMode = 0o775

	// ConfigDirMode applies to compiled configuration directories.
	ConfigDirMode os.FileMode = 0o755

	// FileMode applies to rendered configuration files.
	FileMode os.FileMode = 0o644
)

// TemplateExtension marks files under the template directory that are
// compiled to configuration files.
const TemplateExtension = ".mustache"

// PartialPrefix marks templates that are only included by other
// templates and never compiled on their own.
const PartialPrefix = "_"

// ConfigSubdirs are created under every version's compiled
// configuration directory before rendering, whether or not any
// template targets them. Process supervisors expect them to exist.
var ConfigSubdirs = []string{"uwsgi", "nginx", "upstart"}

// Application computes the paths of one application's tree under the
// node's application root:
//
//	<root>/<name>/
//	    versions/<version>/gbtemplate/   source templates (from the artifact)
//	    versions/<version>/gbconfig/     compiled configuration
//	    tars/<version>.tar.gz            cached artifacts
//	    var/{log,data,run}/
//	    current -> versions/<version>
//	    receipt.cbor
type Application struct {
	// Name is the application name. It doubles as the name of the
	// account and group that own the tree.
	Name string

	// Home is <root>/<name>.
	Home string
}

// New returns the layout for application name under root. The name
// must pass [ValidateName].
func New(root, name string) (Application, error) {
	if err := ValidateName("application", name); err != nil {
		return Application{}, err
	}
	if root == "" {
		return Application{}, fmt.Errorf("application root directory is empty")
	}
	return Application{Name: name, Home: filepath.Join(root, name)}, nil
}

func (a Application) VersionsDir() string { return filepath.Join(a.Home, "versions") }
func (a Application) TarsDir() string     { return filepath.Join(a.Home, "tars") }
func (a Application) VarDir() string      { return filepath.Join(a.Home, "var") }
func (a Application) LogDir() string      { return filepath.Join(a.VarDir(), "log") }
func (a Application) DataDir() string     { return filepath.Join(a.VarDir(), "data") }
func (a Application) RunDir() string      { return filepath.Join(a.VarDir(), "run") }
func (a Application) CurrentLink() string { return filepath.Join(a.Home, "current") }
func (a Application) ReceiptPath() string { return filepath.Join(a.Home, "receipt.cbor") }

// BinDir and CurrentConfigDir resolve through the release pointer, so
// process definitions that use them follow cutovers without edits.
func (a Application) BinDir() string           { return filepath.Join(a.CurrentLink(), "bin") }
func (a Application) CurrentConfigDir() string { return filepath.Join(a.CurrentLink(), "gbconfig") }

// ArtifactKey is the object key of a version's tarball, relative to a
// local cache root or bucket: "<name>/<version>.tar.gz".
func (a Application) ArtifactKey(version string) string {
	return a.Name + "/" + version + ".tar.gz"
}

func (a Application) TarPath(version string) string {
	return filepath.Join(a.TarsDir(), version+".tar.gz")
}

func (a Application) VersionDir(version string) string {
	return filepath.Join(a.VersionsDir(), version)
}

func (a Application) TemplateDir(version string) string {
	return filepath.Join(a.VersionDir(version), "gbtemplate")
}

func (a Application) ConfigDir(version string) string {
	return filepath.Join(a.VersionDir(version), "gbconfig")
}

// BaseDirs lists the directories that must exist before an artifact
// is fetched, parents first.
func (a Application) BaseDirs() []string {
	return []string{
		a.Home,
		a.VersionsDir(),
		a.TarsDir(),
		a.VarDir(),
		a.LogDir(),
		a.DataDir(),
		a.RunDir(),
	}
}

// ValidateName rejects values that cannot be used as a single path
// component: empty strings, separators, "." and "..", and names with
// a leading dot (which would collide with in-progress extraction
// directories).
func ValidateName(kind, value string) error {
	switch {
	case value == "":
		return fmt.Errorf("%s name is empty", kind)
	case strings.ContainsAny(value, `/\`):
		return fmt.Errorf("%s name %q contains a path separator", kind, value)
	case strings.HasPrefix(value, "."):
		return fmt.Errorf("%s name %q starts with a dot", kind, value)
	case strings.ContainsRune(value, 0):
		return fmt.Errorf("%s name %q contains a NUL byte", kind, value)
	}
	return nil
}
