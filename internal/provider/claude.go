package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/tecbitlyfe/bitlyfe/internal/config"
)

// claudeMaxTokens caps the length of a companion reply.
const claudeMaxTokens = 1024

// Claude implements Provider using the Anthropic Messages API.
type Claude struct {
	client *anthropic.Client
	apiKey string
	model  string
	logger *slog.Logger
}

// NewClaude creates a Claude provider. A non-empty BaseURL overrides the API host.
func NewClaude(cfg config.KeyedConfig, logger *slog.Logger) *Claude {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	c := anthropic.NewClient(opts...)
	return &Claude{
		client: &c,
		apiKey: cfg.APIKey,
		model:  cfg.Model,
		logger: logger,
	}
}

func (c *Claude) Name() string          { return config.ProviderClaude }
func (c *Claude) Model() string         { return c.model }
func (c *Claude) Configured() bool      { return c.apiKey != "" }
func (c *Claude) CredentialKey() string { return "ANTHROPIC_API_KEY" }

func (c *Claude) Complete(ctx context.Context, system, prompt string) (string, error) {
	if !c.Configured() {
		return "", &MissingCredentialError{Provider: c.Name(), Key: c.CredentialKey()}
	}

	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: claudeMaxTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("claude API call: %w", err)
	}

	var sb strings.Builder
	for i := range resp.Content {
		if resp.Content[i].Type == "text" {
			sb.WriteString(resp.Content[i].Text)
		}
	}

	c.logger.Debug("completion received", "provider", c.Name(), "model", c.model)
	return checkReply(sb.String())
}
