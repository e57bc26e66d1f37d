package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/tecbitlyfe/bitlyfe/internal/config"
)

const maxErrorBody = 512

// OpenAICompat implements Provider for any OpenAI-style chat/completions API.
// OpenAI, GitHub Models, Azure OpenAI and OpenRouter differ only in endpoint,
// auth header and required credentials.
type OpenAICompat struct {
	name       string
	model      string
	endpoint   string
	apiKey     string
	authHeader string // "Authorization" (Bearer) or "api-key"
	creds      []credential
	client     *http.Client
	logger     *slog.Logger
}

// credential pairs a configuration value with the env var that supplies it.
type credential struct {
	key   string
	value string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model,omitempty"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewOpenAI builds the OpenAI provider.
func NewOpenAI(cfg config.KeyedConfig, logger *slog.Logger) *OpenAICompat {
	return newBearer(config.ProviderOpenAI, "OPENAI_API_KEY", cfg, logger)
}

// NewGitHub builds the GitHub Models provider.
func NewGitHub(cfg config.KeyedConfig, logger *slog.Logger) *OpenAICompat {
	return newBearer(config.ProviderGitHub, "GITHUB_TOKEN", cfg, logger)
}

// NewOpenRouter builds the OpenRouter provider.
func NewOpenRouter(cfg config.KeyedConfig, logger *slog.Logger) *OpenAICompat {
	return newBearer(config.ProviderOpenRouter, "OPENROUTER_API_KEY", cfg, logger)
}

func newBearer(name, key string, cfg config.KeyedConfig, logger *slog.Logger) *OpenAICompat {
	return &OpenAICompat{
		name:       name,
		model:      cfg.Model,
		endpoint:   strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
		apiKey:     cfg.APIKey,
		authHeader: "Authorization",
		creds:      []credential{{key: key, value: cfg.APIKey}},
		client:     newHTTPClient(),
		logger:     logger,
	}
}

// NewAzure builds the Azure OpenAI provider. Azure needs both an API key and
// a resource endpoint; the model is the deployment name.
func NewAzure(cfg config.AzureConfig, logger *slog.Logger) *OpenAICompat {
	endpoint := ""
	if cfg.Endpoint != "" {
		endpoint = fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
			strings.TrimRight(cfg.Endpoint, "/"), url.PathEscape(cfg.Deployment), url.QueryEscape(cfg.APIVersion))
	}
	return &OpenAICompat{
		name:       config.ProviderAzure,
		model:      cfg.Deployment,
		endpoint:   endpoint,
		apiKey:     cfg.APIKey,
		authHeader: "api-key",
		creds: []credential{
			{key: "AZURE_OPENAI_API_KEY", value: cfg.APIKey},
			{key: "AZURE_OPENAI_ENDPOINT", value: cfg.Endpoint},
		},
		client: newHTTPClient(),
		logger: logger,
	}
}

func (o *OpenAICompat) Name() string  { return o.name }
func (o *OpenAICompat) Model() string { return o.model }

func (o *OpenAICompat) Configured() bool {
	for _, c := range o.creds {
		if c.value == "" {
			return false
		}
	}
	return true
}

func (o *OpenAICompat) CredentialKey() string {
	for _, c := range o.creds {
		if c.value == "" {
			return c.key
		}
	}
	return o.creds[0].key
}

// Complete posts a two-message chat and returns the first choice.
func (o *OpenAICompat) Complete(ctx context.Context, system, prompt string) (string, error) {
	if !o.Configured() {
		return "", &MissingCredentialError{Provider: o.name, Key: o.CredentialKey()}
	}

	reqBody := chatRequest{
		Model:     o.model,
		Messages:  []chatMessage{{Role: "system", Content: system}, {Role: "user", Content: prompt}},
		MaxTokens: 1024,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshalling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.authHeader == "Authorization" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	} else {
		req.Header.Set(o.authHeader, o.apiKey)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling %s API: %w", o.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("%s API returned %d: %s", o.name, resp.StatusCode, string(body))
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("%s API error: %s", o.name, result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	o.logger.Debug("completion received", "provider", o.name, "model", o.model)
	return checkReply(result.Choices[0].Message.Content)
}
