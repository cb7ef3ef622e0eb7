package llm

import (
	"fmt"

	"github.com/dcrobot-keen/it-news-mail/internal/config"
	"github.com/dcrobot-keen/it-news-mail/internal/ports"
)

// NewProvider selects the completion provider named by configuration.
func NewProvider(cfg config.AIConfig) (ports.CompletionProvider, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIProvider(cfg.OpenAI, cfg.Timeout()), nil
	case "anthropic":
		return NewAnthropicProvider(cfg.Anthropic, cfg.Timeout()), nil
	}
	return nil, fmt.Errorf("unsupported ai provider %q", cfg.Provider)
}

// MaxTokens returns the token budget of the selected provider.
func MaxTokens(cfg config.AIConfig) int {
	switch cfg.Provider {
	case "anthropic":
		return cfg.Anthropic.MaxTokens
	default:
		return cfg.OpenAI.MaxTokens
	}
}
