package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/tecbitlyfe/bitlyfe/internal/config"
)

// Gemini implements Provider using the Gemini API through the genai SDK.
type Gemini struct {
	apiKey  string
	model   string
	baseURL string
	logger  *slog.Logger

	mu     sync.Mutex
	client *genai.Client
}

// NewGemini creates a Gemini provider. The SDK client is built on first use.
func NewGemini(cfg config.KeyedConfig, logger *slog.Logger) *Gemini {
	return &Gemini{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: cfg.BaseURL,
		logger:  logger,
	}
}

func (g *Gemini) Name() string          { return config.ProviderGemini }
func (g *Gemini) Model() string         { return g.model }
func (g *Gemini) Configured() bool      { return g.apiKey != "" }
func (g *Gemini) CredentialKey() string { return "GEMINI_API_KEY" }

func (g *Gemini) getClient(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	cc := &genai.ClientConfig{
		APIKey:  g.apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if g.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: g.baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	g.client = client
	return client, nil
}

func (g *Gemini) Complete(ctx context.Context, system, prompt string) (string, error) {
	if !g.Configured() {
		return "", &MissingCredentialError{Provider: g.Name(), Key: g.CredentialKey()}
	}
	client, err := g.getClient(ctx)
	if err != nil {
		return "", err
	}

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, ""),
	}
	resp, err := client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini API call: %w", err)
	}

	var sb strings.Builder
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part != nil {
				sb.WriteString(part.Text)
			}
		}
	}

	g.logger.Debug("completion received", "provider", g.Name(), "model", g.model)
	return checkReply(sb.String())
}
