package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/data")

	assert.Equal(t, "ollama", cfg.LLM.Backend)
	assert.Equal(t, "http://localhost:11434", cfg.LLM.BaseURL)
	assert.Equal(t, filepath.Join("/data", "corrections.json"), cfg.Corrections.Path)
	assert.Equal(t, filepath.Join("/data", "sessions.db"), cfg.Sessions.DBPath)
	assert.Equal(t, 10000, cfg.Evaluation.PrecisionCeiling)
	assert.Equal(t, 5*time.Second, cfg.EvalTimeout())
	assert.Equal(t, "de", cfg.Language)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), "/data")
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.LLM.Backend)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mathtutor.yaml")
	content := `
llm:
  backend: openai
  model: gpt-test
evaluation:
  timeout_seconds: 9
  precision_ceiling: 500
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path, "/data")
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.LLM.Backend)
	assert.Equal(t, "gpt-test", cfg.LLM.Model)
	assert.Equal(t, 9*time.Second, cfg.EvalTimeout())
	assert.Equal(t, 500, cfg.Evaluation.PrecisionCeiling)
	// Untouched sections keep their defaults.
	assert.Equal(t, filepath.Join("/data", "corrections.json"), cfg.Corrections.Path)
}

func TestLoad_InvalidYAMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mathtutor.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [kein mapping"), 0o644))

	_, err := Load(path, "/data")
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Run("ollama base url", func(t *testing.T) {
		t.Setenv("OLLAMA_BASE_URL", "http://gpu-box:11434")
		cfg := DefaultConfig("/data")
		cfg.applyEnv()
		assert.Equal(t, "http://gpu-box:11434", cfg.LLM.BaseURL)
	})

	t.Run("model and backend", func(t *testing.T) {
		t.Setenv("MATHTUTOR_BACKEND", "mock")
		t.Setenv("MATHTUTOR_MODEL", "mini")
		cfg := DefaultConfig("/data")
		cfg.applyEnv()
		assert.Equal(t, "mock", cfg.LLM.Backend)
		assert.Equal(t, "mini", cfg.LLM.Model)
	})

	t.Run("openai key does not override configured key", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "sk-env")
		cfg := DefaultConfig("/data")
		cfg.LLM.APIKey = "sk-file"
		cfg.applyEnv()
		assert.Equal(t, "sk-file", cfg.LLM.APIKey)
	})

	t.Run("db path", func(t *testing.T) {
		t.Setenv("MATHTUTOR_DB", "/tmp/other.db")
		cfg := DefaultConfig("/data")
		cfg.applyEnv()
		assert.Equal(t, "/tmp/other.db", cfg.Sessions.DBPath)
	})
}

func TestEvalTimeout_NonPositiveFallsBack(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, 5*time.Second, cfg.EvalTimeout())
}
