// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment names the node's deployment environment. It also scopes
// topology searches.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// EnvVar names the environment variable read by Load.
const EnvVar = "GEARBOX_CONFIG"

// Sources maps a context key to argument sets of data bag items:
// [bag, item] or, for encrypted sources, [bag, item, identityFile].
type Sources map[string][][]string

// Config is the node configuration.
type Config struct {
	// Environment identifies the deployment environment.
	Environment Environment `yaml:"environment"`

	Node     NodeConfig     `yaml:"node"`
	Artifact ArtifactConfig `yaml:"artifact"`
	DataBags DataBagsConfig `yaml:"data_bags"`
	Topology TopologyConfig `yaml:"topology"`

	// Per-environment overrides, applied after the base config.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Node     *NodeOverrides     `yaml:"node,omitempty"`
	Artifact *ArtifactOverrides `yaml:"artifact,omitempty"`
	DataBags *DataBagsConfig    `yaml:"data_bags,omitempty"`
	Topology *TopologyConfig    `yaml:"topology,omitempty"`
}

// NodeConfig describes this node.
type NodeConfig struct {
	// Name is the node name. Default: the host name.
	Name string `yaml:"name"`

	// AttributesFile is a YAML or JSON file holding the node's
	// attribute tree, the base of every template context.
	AttributesFile string `yaml:"attributes_file"`

	// AppDir is the root under which each application gets its tree.
	// Default: /srv/apps
	AppDir string `yaml:"app_dir"`

	// LocalPath is the root of a local artifact cache. When set it is
	// the only artifact source consulted.
	LocalPath string `yaml:"local_path"`

	// SetOwnership chowns application files to the account named after
	// the application. Requires root. Default: true
	SetOwnership bool `yaml:"set_ownership"`

	// DataBags and EncryptedDataBags are node-level sources merged into
	// every application's context before the application record's own.
	DataBags          Sources `yaml:"data_bags"`
	EncryptedDataBags Sources `yaml:"encrypted_data_bags"`
}

// NodeOverrides is NodeConfig with optional booleans.
type NodeOverrides struct {
	AttributesFile string `yaml:"attributes_file"`
	AppDir         string `yaml:"app_dir"`
	LocalPath      string `yaml:"local_path"`
	SetOwnership   *bool  `yaml:"set_ownership"`
}

// ArtifactConfig configures artifact acquisition.
type ArtifactConfig struct {
	// Strict fails deployments that name no artifact source.
	// Default: false (development, staging), true (production)
	Strict bool `yaml:"strict"`

	// BucketEndpoint is an HTTP URL template with {bucket} and {key}
	// placeholders, or file:///path for a directory mirror.
	// Default: https://{bucket}.s3.amazonaws.com/{key}
	BucketEndpoint string `yaml:"bucket_endpoint"`

	// FetchTimeout bounds each download attempt. Default: 5m
	FetchTimeout string `yaml:"fetch_timeout"`

	// Retries is the number of additional attempts after a transient
	// download failure. Default: 2
	Retries int `yaml:"retries"`

	// RetryDelay is the wait before the first retry; it doubles after
	// each attempt. Default: 2s
	RetryDelay string `yaml:"retry_delay"`
}

// ArtifactOverrides is ArtifactConfig with optional booleans.
type ArtifactOverrides struct {
	Strict         *bool  `yaml:"strict"`
	BucketEndpoint string `yaml:"bucket_endpoint"`
	FetchTimeout   string `yaml:"fetch_timeout"`
}

// DataBagsConfig locates data bag items.
type DataBagsConfig struct {
	// Root holds <bag>/<item>.{json,yaml,age}. Default: /etc/gearbox/data_bags
	Root string `yaml:"root"`

	// IdentityFile holds the age identities used for encrypted items
	// that name no identity file of their own.
	// Default: /etc/gearbox/identity.txt
	IdentityFile string `yaml:"identity_file"`
}

// TopologyConfig selects the search backend.
type TopologyConfig struct {
	// Backend is "none", "file" or "sqlite". Default: none
	Backend string `yaml:"backend"`

	// Path is the inventory file or database.
	Path string `yaml:"path"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
// They exist primarily to ensure all fields have sensible zero-values,
// not as a fallback - the config file is required.
func Default() *Config {
	hostname, _ := os.Hostname()
	return &Config{
		Environment: Development,
		Node: NodeConfig{
			Name:         hostname,
			AppDir:       "/srv/apps",
			SetOwnership: true,
		},
		Artifact: ArtifactConfig{
			BucketEndpoint: "https://{bucket}.s3.amazonaws.com/{key}",
			FetchTimeout:   "5m",
			Retries:        2,
			RetryDelay:     "2s",
		},
		DataBags: DataBagsConfig{
			Root:         "/etc/gearbox/data_bags",
			IdentityFile: "/etc/gearbox/identity.txt",
		},
		Topology: TopologyConfig{
			Backend: "none",
		},
	}
}

// Load loads configuration from the GEARBOX_CONFIG environment
// variable. There are no fallbacks: if it is not set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvVar)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your gearbox.yaml config file, or use --config flag", EnvVar)
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production defaults: missing artifact sources are fatal.
		if overrides == nil {
			strict := true
			overrides = &ConfigOverrides{
				Artifact: &ArtifactOverrides{Strict: &strict},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Node != nil {
		if overrides.Node.AttributesFile != "" {
			c.Node.AttributesFile = overrides.Node.AttributesFile
		}
		if overrides.Node.AppDir != "" {
			c.Node.AppDir = overrides.Node.AppDir
		}
		if overrides.Node.LocalPath != "" {
			c.Node.LocalPath = overrides.Node.LocalPath
		}
		if overrides.Node.SetOwnership != nil {
			c.Node.SetOwnership = *overrides.Node.SetOwnership
		}
	}

	if overrides.Artifact != nil {
		if overrides.Artifact.Strict != nil {
			c.Artifact.Strict = *overrides.Artifact.Strict
		}
		if overrides.Artifact.BucketEndpoint != "" {
			c.Artifact.BucketEndpoint = overrides.Artifact.BucketEndpoint
		}
		if overrides.Artifact.FetchTimeout != "" {
			c.Artifact.FetchTimeout = overrides.Artifact.FetchTimeout
		}
	}

	if overrides.DataBags != nil {
		if overrides.DataBags.Root != "" {
			c.DataBags.Root = overrides.DataBags.Root
		}
		if overrides.DataBags.IdentityFile != "" {
			c.DataBags.IdentityFile = overrides.DataBags.IdentityFile
		}
	}

	if overrides.Topology != nil {
		if overrides.Topology.Backend != "" {
			c.Topology.Backend = overrides.Topology.Backend
		}
		if overrides.Topology.Path != "" {
			c.Topology.Path = overrides.Topology.Path
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"GEARBOX_APP_DIR": c.Node.AppDir,
		"HOME":            os.Getenv("HOME"),
	}

	c.Node.AppDir = expandVars(c.Node.AppDir, vars)
	vars["GEARBOX_APP_DIR"] = c.Node.AppDir

	c.Node.AttributesFile = expandVars(c.Node.AttributesFile, vars)
	c.Node.LocalPath = expandVars(c.Node.LocalPath, vars)
	c.DataBags.Root = expandVars(c.DataBags.Root, vars)
	c.DataBags.IdentityFile = expandVars(c.DataBags.IdentityFile, vars)
	c.Topology.Path = expandVars(c.Topology.Path, vars)
	for _, argumentSets := range c.Node.EncryptedDataBags {
		for _, arguments := range argumentSets {
			if len(arguments) == 3 {
				arguments[2] = expandVars(arguments[2], vars)
			}
		}
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

var environmentPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if !environmentPattern.MatchString(string(c.Environment)) {
		errs = append(errs, fmt.Errorf("invalid environment: %q", c.Environment))
	}

	if c.Node.AppDir == "" {
		errs = append(errs, fmt.Errorf("node.app_dir is required"))
	}

	if _, err := c.FetchTimeout(); err != nil {
		errs = append(errs, fmt.Errorf("artifact.fetch_timeout: %w", err))
	}
	if _, err := c.RetryDelay(); err != nil {
		errs = append(errs, fmt.Errorf("artifact.retry_delay: %w", err))
	}
	if c.Artifact.Retries < 0 {
		errs = append(errs, fmt.Errorf("artifact.retries must not be negative"))
	}

	backends := []string{"none", "file", "sqlite"}
	if !contains(backends, c.Topology.Backend) {
		errs = append(errs, fmt.Errorf("topology.backend must be one of: %v", backends))
	}
	if c.Topology.Backend != "none" && c.Topology.Path == "" {
		errs = append(errs, fmt.Errorf("topology.path is required for backend %s", c.Topology.Backend))
	}

	errs = append(errs, validateSources("node.data_bags", c.Node.DataBags, 2)...)
	errs = append(errs, validateSources("node.encrypted_data_bags", c.Node.EncryptedDataBags, 3)...)

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// FetchTimeout parses artifact.fetch_timeout. Zero disables the
// timeout.
func (c *Config) FetchTimeout() (time.Duration, error) {
	return parseDuration(c.Artifact.FetchTimeout)
}

// RetryDelay parses artifact.retry_delay.
func (c *Config) RetryDelay() (time.Duration, error) {
	return parseDuration(c.Artifact.RetryDelay)
}

func parseDuration(value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if duration < 0 {
		return 0, fmt.Errorf("duration %s is negative", value)
	}
	return duration, nil
}

func validateSources(field string, sources Sources, maxArguments int) []error {
	var errs []error
	for key, argumentSets := range sources {
		for index, arguments := range argumentSets {
			if len(arguments) < 2 || len(arguments) > maxArguments {
				errs = append(errs, fmt.Errorf("%s.%s[%d] has %d arguments, want 2 to %d",
					field, key, index, len(arguments), maxArguments))
			}
		}
	}
	return errs
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
