// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for gearbox.
//
// Configuration is loaded from a single file specified by either the
// GEARBOX_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks, no ~/.config discovery,
// and no automatic file search.
//
// The configuration file supports environment-specific sections
// (development, staging, production) that override base values when
// [Config].Environment matches. Production defaults are stricter: a
// deployment with no configured artifact source fails instead of
// continuing with a warning. Other environment names are accepted and
// scope topology searches, but have no override section.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${GEARBOX_APP_DIR}, and ${VAR:-default} patterns are
// expanded. No other environment variables override config values.
//
// This package depends on no other gearbox packages.
package config
