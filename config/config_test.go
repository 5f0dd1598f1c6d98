package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ProviderOllama, cfg.Provider)
	assert.Equal(t, DefaultOllamaModel, cfg.Model)
	assert.Equal(t, 0.2, cfg.Temperature)
	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, 10, cfg.MaxSteps)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
}

func TestLoad_ProviderSelection(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "ZAI")
	t.Setenv("ZAI_API_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ProviderZAI, cfg.Provider)
	assert.Equal(t, DefaultZAIModel, cfg.Model, "model default follows the provider")
}

func TestLoad_ZAIRequiresKey(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "zai")
	t.Setenv("ZAI_API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ZAI_API_KEY")
}

func TestLoad_UnknownProvider(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "carrier-pigeon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown LLM_PROVIDER")
}

func TestLoad_ModelOverride(t *testing.T) {
	t.Setenv("LLM_MODEL", "llama3.1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "llama3.1", cfg.Model)
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("MAX_STEPS", "not-a-number")
	t.Setenv("LLM_TEMPERATURE", "also-not")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.MaxSteps)
	assert.Equal(t, 0.2, cfg.Temperature)
}

func TestValidate_Bounds(t *testing.T) {
	t.Setenv("LLM_TEMPERATURE", "1.5")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_CORSOriginsList(t *testing.T) {
	t.Setenv("CORS_ORIGINS", "http://localhost:3000, http://localhost:5173")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.CORSOrigins)
}
