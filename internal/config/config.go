// Package config loads adcraft configuration from YAML with defaults
// and environment overrides for secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all adcraft configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM configures the generative text provider.
	LLM LLMConfig `yaml:"llm"`

	// Gate configures the quality-gate thresholds.
	Gate GateConfig `yaml:"gate"`

	// Storage configures phase blob persistence.
	Storage StorageConfig `yaml:"storage"`

	// Assets configures asset resolution.
	Assets AssetsConfig `yaml:"assets"`

	// Logging configures categorized file logging.
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the text provider client.
type LLMConfig struct {
	Provider string `yaml:"provider"` // openai, genai
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// GateConfig configures quality-gate routing policy.
type GateConfig struct {
	AdvanceScore int `yaml:"advance_score"`
	RetryScore   int `yaml:"retry_score"`
	MaxRollbacks int `yaml:"max_rollbacks"`
}

// StorageConfig configures the SQLite phase store.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// AssetsConfig configures asset search behavior.
type AssetsConfig struct {
	DefaultTargetCount int `yaml:"default_target_count"`
}

// LoggingConfig configures the logging package.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Dir        string          `yaml:"dir"`
	Level      string          `yaml:"level"`
	Categories map[string]bool `yaml:"categories"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Name:    "adcraft",
		Version: "0.1.0",
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
			Timeout:  "120s",
		},
		Gate: GateConfig{
			AdvanceScore: 80,
			RetryScore:   60,
			MaxRollbacks: 2,
		},
		Storage: StorageConfig{
			DatabasePath: filepath.Join(".adcraft", "phases.db"),
		},
		Assets: AssetsConfig{
			DefaultTargetCount: 5,
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   filepath.Join(".adcraft", "logs"),
		},
	}
}

// Load reads configuration from path, layering it over the defaults.
// A missing file is not an error; defaults plus environment overrides
// apply. ADCRAFT_API_KEY always wins over the file value so secrets
// stay out of config files.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults only.
	case err != nil:
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if key := os.Getenv("ADCRAFT_API_KEY"); key != "" {
		cfg.LLM.APIKey = key
	}
	if model := os.Getenv("ADCRAFT_MODEL"); model != "" {
		cfg.LLM.Model = model
	}

	return cfg, nil
}

// ProviderTimeout parses the LLM timeout string, defaulting to two
// minutes when unset or malformed.
func (c Config) ProviderTimeout() time.Duration {
	if c.LLM.Timeout == "" {
		return 120 * time.Second
	}
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil || d <= 0 {
		return 120 * time.Second
	}
	return d
}
