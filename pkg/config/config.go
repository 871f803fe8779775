package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL  = "https://openrouter.ai/api/v1"
	DefaultModel    = "anthropic/claude-haiku-4.5"
	DefaultMaxTurns = 50
)

var (
	// ErrEmptyPrompt is returned when no prompt was supplied.
	ErrEmptyPrompt = errors.New("prompt must not be empty")

	// ErrMissingAPIKey is returned when no API key is configured.
	ErrMissingAPIKey = errors.New("OPENROUTER_API_KEY is not set")

	// ErrMissingBaseURL is returned when the base URL normalizes to empty.
	ErrMissingBaseURL = errors.New("base URL is not set")

	// ErrMissingModel is returned when the model normalizes to empty.
	ErrMissingModel = errors.New("model is not set")
)

// Config holds all runtime configuration for the agent loop.
type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	MaxTurns int
	Verbose  bool
}

// fileConfig mirrors the optional YAML config file. The API key is
// deliberately absent: it is only read from the environment.
type fileConfig struct {
	BaseURL  *string `yaml:"base_url"`
	Model    *string `yaml:"model"`
	MaxTurns *int    `yaml:"max_turns"`
	Verbose  *bool   `yaml:"verbose"`
}

// DefaultConfig returns a baseline configuration without side effects.
func DefaultConfig() Config {
	return Config{
		BaseURL:  DefaultBaseURL,
		Model:    DefaultModel,
		MaxTurns: DefaultMaxTurns,
	}
}

// Normalize sanitizes configuration values and applies defaults.
func Normalize(cfg Config) Config {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}
	return cfg
}

// Validate reports the first configuration error, if any.
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return ErrMissingAPIKey
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return ErrMissingBaseURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return ErrMissingModel
	}
	return nil
}

// LoadFile overlays the YAML document at path onto cfg. Keys absent from the
// file leave cfg untouched.
func LoadFile(path string, cfg Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data, cfg)
}

// Parse overlays a YAML document onto cfg.
func Parse(data []byte, cfg Config) (Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}
	if fc.BaseURL != nil {
		cfg.BaseURL = *fc.BaseURL
	}
	if fc.Model != nil {
		cfg.Model = *fc.Model
	}
	if fc.MaxTurns != nil {
		if *fc.MaxTurns < 0 {
			return cfg, fmt.Errorf("parse config file: max_turns must not be negative, got %d", *fc.MaxTurns)
		}
		cfg.MaxTurns = *fc.MaxTurns
	}
	if fc.Verbose != nil {
		cfg.Verbose = *fc.Verbose
	}
	return cfg, nil
}

// LogFields returns config values that are safe to log.
func (c Config) LogFields() map[string]any {
	return map[string]any{
		"base_url":    c.BaseURL,
		"model":       c.Model,
		"max_turns":   c.MaxTurns,
		"api_key_set": c.APIKey != "",
	}
}
