// Package config loads the clever.yaml settings shared by the compiler, the
// virtual machine and the logger.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up next to the script.
const FileName = "clever.yaml"

// EnvVar overrides the configuration path.
const EnvVar = "CLEVER_CONFIG"

type Config struct {
	Log      Log      `yaml:"log"`
	Compiler Compiler `yaml:"compiler"`
	VM       VM       `yaml:"vm"`
}

type Log struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is auto, console or json. Auto picks console on a terminal.
	Format string `yaml:"format"`
}

type Compiler struct {
	FoldConstants bool `yaml:"fold_constants"`
	Warnings      bool `yaml:"warnings"`
}

type VM struct {
	MaxCallDepth   int  `yaml:"max_call_depth"`
	MaxTemporaries int  `yaml:"max_temporaries"`
	Trace          bool `yaml:"trace"`
}

func Default() *Config {
	return &Config{
		Log:      Log{Level: "warn", Format: "auto"},
		Compiler: Compiler{FoldConstants: true, Warnings: true},
		VM:       VM{MaxCallDepth: 10000, MaxTemporaries: 65536},
	}
}

// Load reads path on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse decodes data on top of the defaults. The path is used only in errors.
func Parse(data []byte, path string) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Find returns the configuration for a script in dir: the file named by
// CLEVER_CONFIG, else dir/clever.yaml, else the defaults.
func Find(dir string) (*Config, error) {
	if p := os.Getenv(EnvVar); p != "" {
		return Load(p)
	}
	p := filepath.Join(dir, FileName)
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("checking %s: %w", p, err)
	}
	return Load(p)
}

func (c *Config) Validate() error {
	switch c.Log.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}
	if c.VM.MaxCallDepth <= 0 {
		return fmt.Errorf("vm.max_call_depth must be positive, got %d", c.VM.MaxCallDepth)
	}
	if c.VM.MaxTemporaries <= 0 {
		return fmt.Errorf("vm.max_temporaries must be positive, got %d", c.VM.MaxTemporaries)
	}
	return nil
}
