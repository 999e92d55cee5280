package providers

import (
	"fmt"

	"mlforge/pkg/config"
	"mlforge/pkg/llm"
	"mlforge/pkg/llm/resilience"
)

// NewClient creates the raw provider client selected by configuration.
func NewClient(cfg config.LLMConfig) (llm.Client, error) {
	switch cfg.Provider {
	case "openai":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = config.DefaultBaseURL
		}
		return NewOpenAIClient(baseURL, cfg.APIKey, cfg.Model), nil
	case "anthropic":
		return NewAnthropicClient(cfg.APIKey, cfg.Model), nil
	case "ollama":
		return NewOllamaClient(cfg.BaseURL, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

// NewResilientClient creates the configured provider client wrapped with
// retry handling. This is what the rest of the system uses.
func NewResilientClient(cfg config.LLMConfig) (llm.Client, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return resilience.NewRetryableClient(client), nil
}
