// Package config provides environment-driven application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Supported LLM providers.
const (
	ProviderOllama    = "ollama"
	ProviderZAI       = "zai"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Default model per provider.
const (
	DefaultOllamaModel    = "gpt-oss-20b"
	DefaultZAIModel       = "glm-4.6"
	DefaultZAIBaseURL     = "https://api.z.ai/api/coding/paas/v4"
	DefaultOllamaURL      = "http://localhost:11434"
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultAnthropicModel = "claude-3-5-sonnet-20241022"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	CORSOrigins []string

	// LLM provider selection and parameters.
	Provider     string
	Model        string
	Temperature  float64
	OllamaURL    string
	ZAIAPIKey    string
	ZAIBaseURL   string
	OpenAIKey    string
	AnthropicKey string

	// Orchestration.
	MaxSteps int

	// Memory store.
	DBPath        string
	DBMaxSizeMB   float64
	DBWarnSizeMB  float64
	RetentionDays int
	ArchiveDir    string

	// Personas.
	PersonaDir string

	// MCP bridge servers.
	MCPFilesystemURL string
	MCPTraderURL     string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	provider := strings.ToLower(getEnv("LLM_PROVIDER", ProviderOllama))

	cfg := &Config{
		Port:        getEnv("PORT", "8000"),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),

		Provider:     provider,
		Model:        getEnv("LLM_MODEL", defaultModel(provider)),
		Temperature:  getEnvFloat("LLM_TEMPERATURE", 0.2),
		OllamaURL:    getEnv("OLLAMA_URL", DefaultOllamaURL),
		ZAIAPIKey:    getEnv("ZAI_API_KEY", ""),
		ZAIBaseURL:   getEnv("ZAI_BASE_URL", DefaultZAIBaseURL),
		OpenAIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicKey: getEnv("ANTHROPIC_API_KEY", ""),

		MaxSteps: getEnvInt("MAX_STEPS", 10),

		DBPath:        getEnv("DB_PATH", "./data/conversations.db"),
		DBMaxSizeMB:   getEnvFloat("DB_MAX_SIZE_MB", 100),
		DBWarnSizeMB:  getEnvFloat("DB_WARNING_SIZE_MB", 80),
		RetentionDays: getEnvInt("RETENTION_DAYS", 30),
		ArchiveDir:    getEnv("ARCHIVE_DIR", "./data/archives"),

		PersonaDir: getEnv("PERSONA_DIR", "./instruction"),

		MCPFilesystemURL: getEnv("MCP_FILESYSTEM_URL", "http://localhost:7001"),
		MCPTraderURL:     getEnv("MCP_TRADER_URL", "http://localhost:7002"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOllama, ProviderZAI, ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q (supported: ollama, zai, openai, anthropic)", c.Provider)
	}
	if c.Provider == ProviderZAI && c.ZAIAPIKey == "" {
		return fmt.Errorf("ZAI_API_KEY is required for the zai provider")
	}
	if c.Provider == ProviderOpenAI && c.OpenAIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
	}
	if c.Provider == ProviderAnthropic && c.AnthropicKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required for the anthropic provider")
	}
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.MaxSteps <= 0 {
		return fmt.Errorf("MAX_STEPS must be > 0")
	}
	if c.Temperature < 0 || c.Temperature > 1 {
		return fmt.Errorf("LLM_TEMPERATURE must be in [0, 1]")
	}
	if c.DBWarnSizeMB > c.DBMaxSizeMB {
		return fmt.Errorf("DB_WARNING_SIZE_MB cannot exceed DB_MAX_SIZE_MB")
	}
	return nil
}

func defaultModel(provider string) string {
	switch provider {
	case ProviderZAI:
		return DefaultZAIModel
	case ProviderOpenAI:
		return DefaultOpenAIModel
	case ProviderAnthropic:
		return DefaultAnthropicModel
	default:
		return DefaultOllamaModel
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}
