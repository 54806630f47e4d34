// Package config provides the configuration for the linguacafe CLI.
//
// Configuration lives in a single YAML file under
// os.UserConfigDir()/linguacafe/:
//
//	~/Library/Application Support/linguacafe/config.yaml   (macOS)
//	~/.config/linguacafe/config.yaml                       (Linux)
//	%AppData%/linguacafe/config.yaml                       (Windows)
//
// API keys may also come from the environment (GEMINI_API_KEY or
// GOOGLE_API_KEY, OPENAI_API_KEY), which takes precedence over the
// file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
)

const (
	appDir     = "linguacafe"
	configFile = "config.yaml"
	historyDir = "history"
)

// Config holds all CLI settings.
type Config struct {
	// GeminiAPIKey authenticates the live session and the Gemini
	// tutoring backend.
	GeminiAPIKey string `yaml:"gemini_api_key,omitempty"`

	// OpenAIAPIKey authenticates the OpenAI tutoring backend.
	OpenAIAPIKey string `yaml:"openai_api_key,omitempty"`

	// Backend selects the grammar/scenario backend: "gemini" (default)
	// or "openai". Pronunciation scoring and synthesis always use
	// Gemini.
	Backend string `yaml:"backend,omitempty"`

	// LiveModel overrides the live conversation model.
	LiveModel string `yaml:"live_model,omitempty"`

	// Voice is the agent synthesis voice name.
	Voice string `yaml:"voice,omitempty"`

	// Language is the default practice language (a display name like
	// "French").
	Language string `yaml:"language,omitempty"`

	// Learner is the learner's display name, woven into scenarios.
	Learner string `yaml:"learner,omitempty"`

	// Listen is the gateway listen address.
	Listen string `yaml:"listen,omitempty"`

	// HistoryDir overrides the conversation archive location.
	HistoryDir string `yaml:"history_dir,omitempty"`

	// path the config was loaded from, for error reporting.
	path string
}

// Dir returns the root configuration directory.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: cannot determine config directory: %w", err)
	}
	return filepath.Join(base, appDir), nil
}

// Path returns the config file path.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// Load reads the configuration from the default location. A missing
// file yields defaults; the environment overrides API keys either way.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the configuration from a specific file.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{path: path}
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults only.
	case err != nil:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg, nil
}

// Save writes the configuration back to its file.
func (c *Config) Save() error {
	if c.path == "" {
		path, err := Path()
		if err != nil {
			return err
		}
		c.path = path
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("config: create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", c.path, err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Backend == "" {
		c.Backend = "gemini"
	}
	if c.Language == "" {
		c.Language = "French"
	}
	if c.Listen == "" {
		c.Listen = ":8737"
	}
	if c.HistoryDir == "" {
		if dir, err := Dir(); err == nil {
			c.HistoryDir = filepath.Join(dir, historyDir)
		}
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.GeminiAPIKey = v
	} else if v := os.Getenv("GOOGLE_API_KEY"); v != "" && c.GeminiAPIKey == "" {
		c.GeminiAPIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.OpenAIAPIKey = v
	}
}
