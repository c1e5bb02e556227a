// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package render compiles an application's mustache templates into
// configuration files.
//
// Rendering has two phases. [Discover] walks the template directory
// and returns a [Plan] mapping each template to its output path; it
// writes nothing. [Renderer.Apply] renders every template in the plan
// against a view and only then writes the outputs, so a template error
// leaves the output directory untouched.
//
// Templates whose base name starts with "_" are partials: they are
// left out of the plan and are available to other templates as
// {{> _name}}, resolved relative to the template root.
package render
