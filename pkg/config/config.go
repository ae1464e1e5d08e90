// Package config loads the external collaborator configuration the
// orchestrator consumes: provider API settings, the sandboxed tool runner
// command, and privacy policy. Suite selection and file layout live in
// pkg/suite; this package owns only process-wide run settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the top-level run configuration.
type Config struct {
	Providers   map[string]ProviderConfig `yaml:"providers"`
	Concurrency int                       `yaml:"concurrency"`
	Timeout     time.Duration             `yaml:"timeout"`
	OutputDir   string                    `yaml:"output_dir"`
	ToolRunner  ToolRunnerConfig          `yaml:"toolRunner"`
	Privacy     PrivacyConfig             `yaml:"privacy"`
}

// ProviderConfig holds per-provider settings: the default model and the
// environment variable the API key is read from (the API key itself is
// never stored in config).
type ProviderConfig struct {
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// ToolRunnerConfig configures the sandboxed tool-runner constructor
// contract from spec.md §4.4.
type ToolRunnerConfig struct {
	Command             string   `yaml:"command"`
	EnvAllowlist        []string `yaml:"envAllowlist"`
	TimeoutMs           int      `yaml:"timeoutMs"`
	MaxToolCallsPerCase int      `yaml:"maxToolCallsPerCase"`
}

// PrivacyConfig governs report redaction and the raw-fixture warning.
type PrivacyConfig struct {
	AllowRawProductionFixtures bool `yaml:"allowRawProductionFixtures"`
	RedactInReports            bool `yaml:"redactInReports"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Providers:   make(map[string]ProviderConfig),
		Concurrency: 4,
		Timeout:     60 * time.Second,
		OutputDir:   "results/",
		ToolRunner: ToolRunnerConfig{
			TimeoutMs:           10_000,
			MaxToolCallsPerCase: 20,
		},
		Privacy: PrivacyConfig{
			RedactInReports: true,
		},
	}
}

// Load reads and parses a YAML config file at the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault loads config from the given path. If the file does not
// exist, it returns the default configuration. Other errors (e.g. parse
// failures) are still returned.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// ResolveAPIKey reads the API key for the named provider from the
// environment variable specified in that provider's APIKeyEnv field.
func (c *Config) ResolveAPIKey(providerName string) (string, error) {
	p, ok := c.Providers[providerName]
	if !ok {
		return "", fmt.Errorf("provider %q not found in config", providerName)
	}
	if p.APIKeyEnv == "" {
		return "", fmt.Errorf("provider %q has no api_key_env configured", providerName)
	}
	key := os.Getenv(p.APIKeyEnv)
	if key == "" {
		return "", fmt.Errorf("environment variable %s for provider %q is not set", p.APIKeyEnv, providerName)
	}
	return key, nil
}

// Validate checks the config for required fields and returns a
// descriptive error if any are missing or invalid.
func (c *Config) Validate() error {
	var errs []error

	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be >= 1, got %d", c.Concurrency))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be > 0, got %s", c.Timeout))
	}
	if c.OutputDir == "" {
		errs = append(errs, errors.New("output_dir must not be empty"))
	}
	if c.ToolRunner.TimeoutMs <= 0 {
		errs = append(errs, fmt.Errorf("toolRunner.timeoutMs must be > 0, got %d", c.ToolRunner.TimeoutMs))
	}
	if c.ToolRunner.MaxToolCallsPerCase < 1 {
		errs = append(errs, fmt.Errorf("toolRunner.maxToolCallsPerCase must be >= 1, got %d", c.ToolRunner.MaxToolCallsPerCase))
	}

	for name, p := range c.Providers {
		if p.Model == "" {
			errs = append(errs, fmt.Errorf("provider %q: model is required", name))
		}
		if p.APIKeyEnv == "" {
			errs = append(errs, fmt.Errorf("provider %q: api_key_env is required", name))
		}
	}

	return errors.Join(errs...)
}

// Warnings synthesizes the privacy-related run warnings spec.md §4.6
// mandates.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.Privacy.AllowRawProductionFixtures {
		warnings = append(warnings, "allowRawProductionFixtures is enabled: ensure dataset fixtures comply with data-handling policy")
	}
	if c.Privacy.RedactInReports {
		warnings = append(warnings, "report payloads are redacted by default (privacy.redactInReports)")
	}
	return warnings
}
