// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rendercontext

import "github.com/bureau-foundation/gearbox/lib/tree"

// ReservedKey names the namespace holding deployment paths.
const ReservedKey = "gearbox"

// Context is a built template context. It is never persisted.
type Context struct {
	application string
	root        tree.Value
}

// Tree returns the full merged tree.
func (c *Context) Tree() tree.Value { return c.root }

// Application returns the application name the context was built for.
func (c *Context) Application() string { return c.application }

// App returns the application subtree.
func (c *Context) App() tree.Value {
	app, _ := c.root.Get(c.application)
	return app
}

// Reserved returns the reserved namespace.
func (c *Context) Reserved() tree.Value {
	reserved, _ := c.root.Get(ReservedKey)
	return reserved
}

// View returns the mapping handed to templates: the full tree, then
// the application subtree merged over it, then the reserved namespace
// merged over that.
func (c *Context) View() tree.Value {
	view := c.root
	if app := c.App(); app.IsMapping() {
		view = tree.Merge(view, app)
	}
	if reserved := c.Reserved(); reserved.IsMapping() {
		view = tree.Merge(view, reserved)
	}
	return view
}
