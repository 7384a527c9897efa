// Copyright 2026 The Throne Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for Throne.
type Config struct {
	// Environment identifies the deployment type (development,
	// staging, production).
	Environment Environment `yaml:"environment"`

	// Server configures the king's listen address.
	Server ServerConfig `yaml:"server"`

	// Checkpoint configures king state persistence.
	Checkpoint CheckpointConfig `yaml:"checkpoint"`

	// Skills configures skill definition loading.
	Skills SkillsConfig `yaml:"skills"`

	// Providers lists the LLM providers agents may use.
	Providers []ProviderConfig `yaml:"providers"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per
// environment.
type ConfigOverrides struct {
	Server     *ServerConfig     `yaml:"server,omitempty"`
	Checkpoint *CheckpointConfig `yaml:"checkpoint,omitempty"`
	Skills     *SkillsConfig     `yaml:"skills,omitempty"`
}

// ServerConfig configures the king's listen address.
type ServerConfig struct {
	// Host is the bind address. Default: 127.0.0.1
	Host string `yaml:"host"`

	// Port is the listen port. Default: 7600
	Port uint16 `yaml:"port"`
}

// Address returns host:port.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// CheckpointConfig configures king state persistence.
type CheckpointConfig struct {
	// Path is the checkpoint file location.
	// Default: ${HOME}/.cache/throne/king.checkpoint
	Path string `yaml:"path"`

	// Interval is how often the king checkpoints, as a Go duration
	// string. Default: 30s
	Interval string `yaml:"interval"`
}

// SkillsConfig configures skill definition loading.
type SkillsConfig struct {
	// Dir is the directory holding *.jsonc skill definitions.
	// Default: ${HOME}/.cache/throne/skills
	Dir string `yaml:"dir"`
}

// Default returns the default configuration. These defaults are used
// as a base before loading the config file. They exist primarily to
// ensure all fields have sensible zero-values, not as a fallback -
// the config file is required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "throne")

	return &Config{
		Environment: Development,
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 7600,
		},
		Checkpoint: CheckpointConfig{
			Path:     filepath.Join(defaultRoot, "king.checkpoint"),
			Interval: "30s",
		},
		Skills: SkillsConfig{
			Dir: filepath.Join(defaultRoot, "skills"),
		},
	}
}

// Load loads configuration from the THRONE_CONFIG environment
// variable.
//
// This is the only way to load configuration without an explicit
// path. There are no fallbacks or defaults - if THRONE_CONFIG is not
// set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv("THRONE_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("THRONE_CONFIG environment variable not set; " +
			"set it to the path of your throne.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment
// variables do not override config values; the only exception is
// provider API keys, which are read from the environment variable
// each provider names (keys never live in the file).
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}
	return cfg, nil
}

// applyEnvironmentOverrides applies the environment-specific
// overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}

	if overrides == nil {
		return
	}

	if overrides.Server != nil {
		if overrides.Server.Host != "" {
			c.Server.Host = overrides.Server.Host
		}
		if overrides.Server.Port != 0 {
			c.Server.Port = overrides.Server.Port
		}
	}

	if overrides.Checkpoint != nil {
		if overrides.Checkpoint.Path != "" {
			c.Checkpoint.Path = overrides.Checkpoint.Path
		}
		if overrides.Checkpoint.Interval != "" {
			c.Checkpoint.Interval = overrides.Checkpoint.Interval
		}
	}

	if overrides.Skills != nil {
		if overrides.Skills.Dir != "" {
			c.Skills.Dir = overrides.Skills.Dir
		}
	}
}

// Validate checks the loaded configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}

	seen := make(map[string]bool)
	for i := range c.Providers {
		provider := &c.Providers[i]
		if err := provider.Validate(); err != nil {
			return fmt.Errorf("providers[%d]: %w", i, err)
		}
		if seen[provider.Name] {
			return fmt.Errorf("providers[%d]: duplicate provider name %q", i, provider.Name)
		}
		seen[provider.Name] = true
	}
	return nil
}

// Provider returns the enabled provider with the given name.
func (c *Config) Provider(name string) (*ProviderConfig, bool) {
	for i := range c.Providers {
		if c.Providers[i].Name == name && c.Providers[i].Enabled {
			return &c.Providers[i], true
		}
	}
	return nil, false
}
