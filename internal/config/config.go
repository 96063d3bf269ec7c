// Package config handles application configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/athenslab/athens/internal/core"
	"github.com/athenslab/athens/internal/provider"
)

// Config represents the application configuration.
type Config struct {
	Debate    core.Settings             `yaml:"debate"`
	Agents    AgentsConfig              `yaml:"agents"`
	Providers map[string]ProviderConfig `yaml:"providers"`
	Server    ServerConfig              `yaml:"server"`
	Storage   StorageConfig             `yaml:"storage"`
}

// AgentsConfig names the two participants and their providers.
type AgentsConfig struct {
	ProponentName     string `yaml:"proponent_name"`
	ProponentProvider string `yaml:"proponent_provider"`
	SkepticName       string `yaml:"skeptic_name"`
	SkepticProvider   string `yaml:"skeptic_provider"`
}

// ProviderConfig configures one generation backend.
type ProviderConfig struct {
	Command string        `yaml:"command"`
	Args    []string      `yaml:"args,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
	Enabled bool          `yaml:"enabled"`
}

// ServerConfig configures the status API server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// StorageConfig configures persistence.
type StorageConfig struct {
	Path string `yaml:"path,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Debate: core.DefaultSettings(),
		Agents: AgentsConfig{
			ProponentName:     "Proponent",
			ProponentProvider: "mock",
			SkepticName:       "Skeptic",
			SkepticProvider:   "mock",
		},
		Providers: map[string]ProviderConfig{
			"mock": {Enabled: true},
		},
		Server: ServerConfig{Port: 8183},
	}
}

// Load reads a YAML config file, falling back to defaults when the file
// is absent, and applies .env overrides from the same directory.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}

		if env, err := LoadEnv(filepath.Join(filepath.Dir(path), ".env")); err == nil {
			ApplyEnvOverrides(cfg, env)
		}
	}

	cfg.Debate.Clamp()
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8183
	}
	return cfg, nil
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "athens.yaml"
	}
	return filepath.Join(home, ".athens", "athens.yaml")
}

// CreateRegistry builds the provider registry from enabled providers.
func (c *Config) CreateRegistry() *provider.Registry {
	registry := provider.NewRegistry()
	for name, pc := range c.Providers {
		if !pc.Enabled {
			continue
		}
		if name == "mock" || pc.Command == "" {
			registry.Register(&provider.MockProvider{ProviderName: name})
			continue
		}
		registry.Register(provider.NewCLIProvider(name, pc.Command, pc.Args, pc.Timeout))
	}
	return registry
}
