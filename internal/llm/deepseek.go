package llm

import (
	"fmt"

	"github.com/Jurkyy/project-pilot/internal/credential"
)

const (
	DefaultDeepSeekBaseURL = "https://api.deepseek.com"
	DefaultDeepSeekModel   = "deepseek-chat"
)

// NewDeepSeekTransport creates a transport for the DeepSeek API, which speaks
// the OpenAI chat completion protocol
func NewDeepSeekTransport(cfg OpenAIConfig) *OpenAITransport {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultDeepSeekBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultDeepSeekModel
	}
	return newTransport("deepseek", cfg)
}

// NewTransport picks the transport for provider
func NewTransport(provider credential.Provider, cfg OpenAIConfig) (*OpenAITransport, error) {
	switch provider {
	case credential.ProviderOpenAI:
		return NewOpenAITransport(cfg), nil
	case credential.ProviderDeepSeek:
		return NewDeepSeekTransport(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %q", provider)
	}
}
