package provider

import (
	"fmt"
	"log/slog"

	"github.com/tecbitlyfe/bitlyfe/internal/config"
)

// FromConfig builds one Provider per entry of cfg.Order, preserving order.
// Providers without credentials are still returned so they can be named
// explicitly and report which key is missing.
func FromConfig(cfg config.ProvidersConfig, logger *slog.Logger) ([]Provider, error) {
	out := make([]Provider, 0, len(cfg.Order))
	for _, name := range cfg.Order {
		var p Provider
		switch name {
		case config.ProviderOllama:
			p = NewOllama(cfg.Ollama, logger)
		case config.ProviderGemini:
			p = NewGemini(cfg.Gemini, logger)
		case config.ProviderGitHub:
			p = NewGitHub(cfg.GitHub, logger)
		case config.ProviderAzure:
			p = NewAzure(cfg.Azure, logger)
		case config.ProviderClaude:
			p = NewClaude(cfg.Claude, logger)
		case config.ProviderOpenAI:
			p = NewOpenAI(cfg.OpenAI, logger)
		case config.ProviderOpenRouter:
			p = NewOpenRouter(cfg.OpenRouter, logger)
		default:
			return nil, fmt.Errorf("unknown provider %q", name)
		}
		out = append(out, p)
	}
	return out, nil
}
