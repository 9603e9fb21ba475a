// Package config loads the tutor's configuration from a YAML file with
// environment overrides, falling back to sensible defaults when no file is
// present.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration.
type Config struct {
	LLM         LLMConfig        `yaml:"llm"`
	Evaluation  EvaluationConfig `yaml:"evaluation"`
	Corrections CorrectionConfig `yaml:"corrections"`
	Sessions    SessionConfig    `yaml:"sessions"`
	Logging     LoggingConfig    `yaml:"logging"`
	Language    string           `yaml:"language"`
}

// LLMConfig selects and parameterizes the chat backend.
type LLMConfig struct {
	// Backend is "ollama", "openai" or "mock".
	Backend string `yaml:"backend"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"api_key"`
}

// EvaluationConfig bounds the evaluation sandbox.
type EvaluationConfig struct {
	TimeoutSeconds   int `yaml:"timeout_seconds"`
	PrecisionCeiling int `yaml:"precision_ceiling"`
}

// CorrectionConfig locates the correction memory.
type CorrectionConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// SessionConfig locates the session database. An empty path disables
// persistence.
type SessionConfig struct {
	DBPath string `yaml:"db_path"`
}

// LoggingConfig tunes the structured logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the configuration used when no file exists, rooted
// under dataDir.
func DefaultConfig(dataDir string) *Config {
	return &Config{
		LLM: LLMConfig{
			Backend: "ollama",
			BaseURL: "http://localhost:11434",
			Model:   "qwen2.5:7b",
		},
		Evaluation: EvaluationConfig{
			TimeoutSeconds:   5,
			PrecisionCeiling: 10000,
		},
		Corrections: CorrectionConfig{
			Path:  filepath.Join(dataDir, "corrections.json"),
			Watch: true,
		},
		Sessions: SessionConfig{
			DBPath: filepath.Join(dataDir, "sessions.db"),
		},
		Logging:  LoggingConfig{Level: "info"},
		Language: "de",
	}
}

// Load reads path when it exists, layering the file over defaults and the
// environment over the file.
func Load(path, dataDir string) (*Config, error) {
	cfg := DefaultConfig(dataDir)

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Defaults apply.
	default:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("MATHTUTOR_BACKEND"); v != "" {
		c.LLM.Backend = v
	}
	if v := os.Getenv("MATHTUTOR_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("MATHTUTOR_DB"); v != "" {
		c.Sessions.DBPath = v
	}
	if v := os.Getenv("MATHTUTOR_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// EvalTimeout returns the sandbox deadline as a duration.
func (c *Config) EvalTimeout() time.Duration {
	if c.Evaluation.TimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Evaluation.TimeoutSeconds) * time.Second
}
