package llmclient

import (
	"fmt"

	"github.com/flowforge/orchestrator/pkg/config"
)

// New creates the provider backend named by cfg.Type, configured per cfg.
func New(cfg *config.LLMProviderConfig) (Client, error) {
	switch cfg.Type {
	case config.LLMProviderTypeGoogle:
		return NewGoogleClient(cfg)
	case config.LLMProviderTypeOpenAI:
		return NewOpenAIClient(cfg)
	case config.LLMProviderTypeAnthropic:
		return NewAnthropicClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider type: %s", cfg.Type)
	}
}
