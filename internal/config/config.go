// Package config builds the launcher configuration once at startup,
// replacing ad hoc module-level environment lookups with an explicit
// struct that components receive by injection.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// ToolConfig is the per-tool section of the config file.
type ToolConfig struct {
	// Image is the path to the tool's .sif file. Overridden by the tool's
	// environment variable and the --sif_path flag.
	Image string `yaml:"image"`
	// Cache is the tool's model/data cache directory, where the tool
	// supports one.
	Cache string `yaml:"cache"`
	// Defaults overrides the built-in flag defaults for the tool. Keys
	// match the CLI flag names.
	Defaults map[string]any `yaml:"defaults"`
}

// File is the on-disk layout of foldlaunch.yaml.
type File struct {
	Tools map[string]ToolConfig `yaml:"tools"`
}

// Config is the resolved launcher configuration. Constructed once in the
// cmd layer and passed down; components never read the environment
// themselves.
type Config struct {
	// WorkDir anchors relative default output directories.
	WorkDir string
	// TmpDir is the host scratch directory bound into the container.
	TmpDir string
	Tools  map[string]ToolConfig

	lookupEnv func(string) (string, bool)
}

// Option configures Load.
type Option func(*Config)

// WithEnviron substitutes the environment lookup, for tests.
func WithEnviron(lookup func(string) (string, bool)) Option {
	return func(c *Config) {
		c.lookupEnv = lookup
	}
}

// WithWorkDir overrides the working directory.
func WithWorkDir(dir string) Option {
	return func(c *Config) {
		c.WorkDir = dir
	}
}

// Load builds the Config. path names the optional YAML config file; an
// empty path means "no file", and a missing file at the default location
// is not an error.
func Load(path string, opts ...Option) (*Config, error) {
	cfg := &Config{
		Tools:     map[string]ToolConfig{},
		lookupEnv: os.LookupEnv,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.WorkDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("determining working directory: %w", err)
		}
		cfg.WorkDir = wd
	}
	cfg.TmpDir = cfg.tempDir()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Absent config file means "all defaults".
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	if f.Tools != nil {
		c.Tools = f.Tools
	}
	return nil
}

// tempDir picks the host scratch directory: TMP, then TMPDIR, then /tmp.
func (c *Config) tempDir() string {
	if v, ok := c.lookupEnv("TMP"); ok && v != "" {
		return v
	}
	if v, ok := c.lookupEnv("TMPDIR"); ok && v != "" {
		return v
	}
	return "/tmp"
}

// Env returns the named environment variable via the configured lookup.
func (c *Config) Env(name string) (string, bool) {
	return c.lookupEnv(name)
}

// Image resolves a tool's container image path: explicit flag value first,
// then the tool's environment variable, then the config file entry, then
// the built-in fallback. Existence is checked later by singularity.Load,
// before any bind resolution happens.
func (c *Config) Image(tool, flagValue, envVar, fallback string) string {
	if flagValue != "" {
		return flagValue
	}
	if v, ok := c.lookupEnv(envVar); ok && v != "" {
		return v
	}
	if tc, ok := c.Tools[tool]; ok && tc.Image != "" {
		return tc.Image
	}
	return fallback
}

// CacheDir resolves a tool's cache directory: explicit flag value, then
// the tool's environment variable, then the config file entry, then the
// built-in fallback.
func (c *Config) CacheDir(tool, flagValue, envVar, fallback string) string {
	if flagValue != "" {
		return flagValue
	}
	if v, ok := c.lookupEnv(envVar); ok && v != "" {
		return v
	}
	if tc, ok := c.Tools[tool]; ok && tc.Cache != "" {
		return tc.Cache
	}
	return fallback
}

// OutputDir returns the default output directory for a tool, under the
// working directory.
func (c *Config) OutputDir(tool string) string {
	return filepath.Join(c.WorkDir, tool+"_output")
}

// ApplyDefaults decodes the config file's per-tool default overrides into
// a tool options struct. Weak typing lets YAML integers fill float fields
// and vice versa.
func (c *Config) ApplyDefaults(tool string, target any) error {
	tc, ok := c.Tools[tool]
	if !ok || len(tc.Defaults) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("building defaults decoder for %s: %w", tool, err)
	}
	if err := dec.Decode(tc.Defaults); err != nil {
		return fmt.Errorf("applying %s defaults from config: %w", tool, err)
	}
	return nil
}
