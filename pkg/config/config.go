// Package config loads RealConsole's configuration: a single YAML file
// plus an optional .env file, with ${ENV_VAR} interpolation and
// fsnotify-backed hot reload (§6.1, §6.2).
package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LLMEndpoint describes one LLM client configuration (primary or fallback).
type LLMEndpoint struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
}

// LLMConfig holds the primary client and optional fallback.
type LLMConfig struct {
	Primary  LLMEndpoint  `yaml:"primary"`
	Fallback *LLMEndpoint `yaml:"fallback"`
}

// FeaturesConfig gates optional runtime behavior.
type FeaturesConfig struct {
	ShellEnabled        bool `yaml:"shell_enabled"`
	ShellTimeout        int  `yaml:"shell_timeout"`
	ToolCallingEnabled  bool `yaml:"tool_calling_enabled"`
	MaxToolIterations   int  `yaml:"max_tool_iterations"`
	MaxToolsPerRound    int  `yaml:"max_tools_per_round"`
}

// MemoryConfig controls the Execution Logger/Memory's size and persistence.
type MemoryConfig struct {
	Capacity       int    `yaml:"capacity"`
	PersistentFile string `yaml:"persistent_file"`
	AutoSave       bool   `yaml:"auto_save"`
}

// IntentConfig controls the Intent Matcher / Conversation Manager's
// LLM-assisted extraction and validation.
type IntentConfig struct {
	LLMExtractionEnabled bool    `yaml:"llm_extraction_enabled"`
	LLMValidationEnabled bool    `yaml:"llm_validation_enabled"`
	ValidationThreshold  float64 `yaml:"validation_threshold"`
	RequireConfirmation  bool    `yaml:"require_confirmation"`
}

// Config is the full realconsole.yaml schema (§6.1).
type Config struct {
	Prefix   string         `yaml:"prefix"`
	LLM      LLMConfig      `yaml:"llm"`
	Features FeaturesConfig `yaml:"features"`
	Memory   MemoryConfig   `yaml:"memory"`
	Intent   IntentConfig   `yaml:"intent"`
}

// DeepCopy returns an independent copy of c.
func (c *Config) DeepCopy() *Config {
	cp := *c
	if c.LLM.Fallback != nil {
		fb := *c.LLM.Fallback
		cp.LLM.Fallback = &fb
	}
	return &cp
}

// Validate ensures the mandatory fields are present.
func (c *Config) Validate() error {
	if c.Prefix == "" {
		return fmt.Errorf("config: 'prefix' is required")
	}
	if c.LLM.Primary.Provider == "" {
		return fmt.Errorf("config: 'llm.primary.provider' is required")
	}
	if c.LLM.Primary.Model == "" {
		return fmt.Errorf("config: 'llm.primary.model' is required")
	}
	return nil
}

// Defaults returns a Config populated with the runtime's hardcoded safe
// defaults, overridden by whatever the YAML file specifies.
func Defaults() *Config {
	return &Config{
		Prefix: "/",
		Features: FeaturesConfig{
			ShellEnabled:       true,
			ShellTimeout:       30,
			ToolCallingEnabled: true,
			MaxToolIterations:  10,
			MaxToolsPerRound:   4,
		},
		Memory: MemoryConfig{
			Capacity: 200,
			AutoSave: false,
		},
		Intent: IntentConfig{
			ValidationThreshold: 0.6,
		},
	}
}

var envInterpolation = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// interpolateEnv replaces every ${ENV_VAR} occurrence with the process
// environment's value for ENV_VAR, leaving unresolved references as-is.
func interpolateEnv(s string) string {
	return envInterpolation.ReplaceAllStringFunc(s, func(match string) string {
		name := envInterpolation.FindStringSubmatch(match)[1]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return match
	})
}

// LoadEnv loads a .env file (§6.2), recognizing DEEPSEEK_API_KEY,
// DEEPSEEK_ENDPOINT, OLLAMA_ENDPOINT. A missing file is not an error.
func LoadEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// Load reads and parses realconsole.yaml at path, applying defaults first
// and ${ENV_VAR} interpolation to api_key fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	cfg.LLM.Primary.APIKey = interpolateEnv(cfg.LLM.Primary.APIKey)
	if cfg.LLM.Fallback != nil {
		cfg.LLM.Fallback.APIKey = interpolateEnv(cfg.LLM.Fallback.APIKey)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
