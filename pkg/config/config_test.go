package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresAPIKey(t *testing.T) {
	t.Setenv("NVIDIA_API_KEY", "")
	t.Setenv("LLM_PROVIDER", "openai")

	_, err := Load("")
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "api_key", cfgErr.Field)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("NVIDIA_API_KEY", "nvapi-test")
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("NVIDIA_MODEL_ID", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, DefaultModel, cfg.LLM.Model)
	assert.Equal(t, DefaultBaseURL, cfg.LLM.BaseURL)
	assert.Equal(t, 0.9, cfg.LLM.TopP)
	assert.Equal(t, 30*time.Minute, cfg.Sandbox.IdleTimeout)
	assert.Equal(t, 10, cfg.Workflow.HistoryLimit)
	assert.Equal(t, 25, cfg.Workflow.MaxIterations)
	assert.Equal(t, "ml", cfg.Workflow.Pipeline)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("NVIDIA_API_KEY", "nvapi-test")
	t.Setenv("NVIDIA_MODEL_ID", "mistralai/mixtral-8x22b-instruct-v0.1")
	t.Setenv("SANDBOX_IDLE_TIMEOUT", "15m")
	t.Setenv("PIPELINE", "codegen")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "mistralai/mixtral-8x22b-instruct-v0.1", cfg.LLM.Model)
	assert.Equal(t, 15*time.Minute, cfg.Sandbox.IdleTimeout)
	assert.Equal(t, "codegen", cfg.Workflow.Pipeline)
}

func TestLoadOllamaNeedsNoKey(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "ollama")
	t.Setenv("NVIDIA_API_KEY", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
}

func TestLoadRejectsUnknownPipeline(t *testing.T) {
	t.Setenv("NVIDIA_API_KEY", "nvapi-test")
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("PIPELINE", "bogus")

	_, err := Load("")
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "workflow.pipeline", cfgErr.Field)
}

func TestLoadYAMLOverlay(t *testing.T) {
	t.Setenv("NVIDIA_API_KEY", "nvapi-test")
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("SANDBOX_IMAGE", "")
	t.Setenv("PIPELINE", "")

	dir := t.TempDir()
	path := filepath.Join(dir, "mlforge.yaml")
	data := []byte("sandbox:\n  image: python-ml:3.11\nworkflow:\n  history_limit: 5\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "python-ml:3.11", cfg.Sandbox.Image)
	assert.Equal(t, 5, cfg.Workflow.HistoryLimit)
	// env still wins over file
	assert.Equal(t, "nvapi-test", cfg.LLM.APIKey)
}
