package services

import (
	"fmt"
	"log/slog"

	"github.com/jwebster45206/modforge/internal/config"
)

// NewFromConfig builds the text and image services selected by cfg. Both
// share one retry policy.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (LLMService, ImageService, error) {
	retrier := NewRetrier(cfg.LLMMaxRetries, logger)

	var llm LLMService
	switch cfg.LLMProvider {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, nil, fmt.Errorf("anthropic API key is required when using anthropic provider")
		}
		llm = NewAnthropicService(cfg.AnthropicAPIKey, cfg.ModelName, cfg.BackendModelName, retrier, logger)
	case "openai", "venice", "ollama":
		svc, err := newCompat(cfg, cfg.LLMProvider, retrier, logger)
		if err != nil {
			return nil, nil, err
		}
		llm = svc
	default:
		return nil, nil, fmt.Errorf("unsupported LLM provider %q", cfg.LLMProvider)
	}

	var images ImageService
	if svc, ok := llm.(*OpenAICompatService); ok && cfg.ImageProvider == cfg.LLMProvider {
		images = svc
	} else {
		svc, err := newCompat(cfg, cfg.ImageProvider, retrier, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("image provider: %w", err)
		}
		images = svc
	}
	return llm, images, nil
}

func newCompat(cfg *config.Config, provider string, retrier *Retrier, logger *slog.Logger) (*OpenAICompatService, error) {
	c := OpenAICompatConfig{ProviderName: provider, ImageModel: cfg.ImageModelName}
	if provider == cfg.LLMProvider {
		c.Model = cfg.ModelName
		c.BackendModel = cfg.BackendModelName
	}
	switch provider {
	case "openai":
		c.APIKey = cfg.OpenAIAPIKey
	case "venice":
		c.APIKey = cfg.VeniceAPIKey
	case "ollama":
		c.BaseURL = cfg.OllamaBaseURL
	}
	return NewOpenAICompatService(c, retrier, logger)
}
