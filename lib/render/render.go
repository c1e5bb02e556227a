// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cbroglie/mustache"

	"github.com/bureau-foundation/gearbox/lib/layout"
	"github.com/bureau-foundation/gearbox/lib/tree"
)

// ErrRender is returned when a template cannot be parsed or rendered,
// or its output cannot be written.
var ErrRender = errors.New("template rendering failed")

// Mapping pairs a template with the file compiled from it.
type Mapping struct {
	Source string `json:"source" cbor:"source"`
	Output string `json:"output" cbor:"output"`
}

// Plan is the result of discovery.
type Plan struct {
	TemplateRoot string
	OutputRoot   string

	// Mappings is sorted by Output.
	Mappings []Mapping
}

// Discover lists the templates under templateRoot. A missing
// templateRoot yields an empty plan.
func Discover(templateRoot, outputRoot string) (*Plan, error) {
	plan := &Plan{TemplateRoot: templateRoot, OutputRoot: outputRoot}
	info, err := os.Stat(templateRoot)
	if errors.Is(err, fs.ErrNotExist) {
		return plan, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: template root %s is not a directory", ErrRender, templateRoot)
	}

	err = filepath.WalkDir(templateRoot, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), layout.TemplateExtension) {
			return nil
		}
		if strings.HasPrefix(entry.Name(), layout.PartialPrefix) {
			return nil
		}
		relative, err := filepath.Rel(templateRoot, path)
		if err != nil {
			return err
		}
		plan.Mappings = append(plan.Mappings, Mapping{
			Source: path,
			Output: filepath.Join(outputRoot, strings.TrimSuffix(relative, layout.TemplateExtension)),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: discovering templates in %s: %w", ErrRender, templateRoot, err)
	}
	sort.Slice(plan.Mappings, func(i, j int) bool {
		return plan.Mappings[i].Output < plan.Mappings[j].Output
	})
	return plan, nil
}

// Renderer writes compiled templates.
type Renderer struct {
	Owner  layout.Owner
	Logger *slog.Logger
}

// Template renders one mapping of plan against view without writing.
func (plan *Plan) Template(mapping Mapping, view tree.Value) (string, error) {
	provider := &mustache.FileProvider{
		Paths:      []string{plan.TemplateRoot},
		Extensions: []string{layout.TemplateExtension},
	}
	template, err := mustache.ParseFilePartials(mapping.Source, provider)
	if err != nil {
		return "", fmt.Errorf("%w: parsing %s: %w", ErrRender, mapping.Source, err)
	}
	output, err := template.Render(view.Map())
	if err != nil {
		return "", fmt.Errorf("%w: rendering %s: %w", ErrRender, mapping.Source, err)
	}
	return output, nil
}

// Apply renders every mapping in plan against view, stages each output
// beside its destination with mode 0644, and only then renames the
// staged files into place. Parent directories are created with mode
// 0755. It returns the mappings written.
func (r *Renderer) Apply(plan *Plan, view tree.Value) ([]Mapping, error) {
	outputs := make([]string, len(plan.Mappings))
	for index, mapping := range plan.Mappings {
		output, err := plan.Template(mapping, view)
		if err != nil {
			return nil, err
		}
		outputs[index] = output
	}

	owner := r.Owner
	if owner == nil {
		owner = layout.Unowned("")
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	staged := make([]string, 0, len(plan.Mappings))
	defer func() {
		for _, path := range staged {
			os.Remove(path)
		}
	}()
	for index, mapping := range plan.Mappings {
		if err := layout.EnsureDir(filepath.Dir(mapping.Output), layout.ConfigDirMode, owner); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRender, err)
		}
		path, err := layout.StageFile(mapping.Output, []byte(outputs[index]), layout.FileMode, owner)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRender, err)
		}
		staged = append(staged, path)
	}

	// Every output is staged; only the renames remain.
	written := make([]Mapping, 0, len(plan.Mappings))
	for index, mapping := range plan.Mappings {
		if err := os.Rename(staged[index], mapping.Output); err != nil {
			staged = staged[index:]
			return written, fmt.Errorf("%w: renaming %s into place: %w", ErrRender, mapping.Output, err)
		}
		logger.Debug("template compiled", "source", mapping.Source, "output", mapping.Output)
		written = append(written, mapping)
	}
	staged = nil
	logger.Info("templates compiled", "output_root", plan.OutputRoot, "count", len(written))
	return written, nil
}

// Render discovers and applies in one call.
func (r *Renderer) Render(templateRoot, outputRoot string, view tree.Value) ([]Mapping, error) {
	plan, err := Discover(templateRoot, outputRoot)
	if err != nil {
		return nil, err
	}
	return r.Apply(plan, view)
}
