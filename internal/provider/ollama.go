package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tecbitlyfe/bitlyfe/internal/config"
)

// Ollama implements Provider using a local Ollama server. The base URL is its
// only credential: no URL, no provider.
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type ollamaChatResponse struct {
	Message chatMessage `json:"message"`
	Error   string      `json:"error,omitempty"`
}

// NewOllama creates a new Ollama-backed provider.
func NewOllama(cfg config.OllamaConfig, logger *slog.Logger) *Ollama {
	return &Ollama{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		client:  newHTTPClient(),
		logger:  logger,
	}
}

func (o *Ollama) Name() string          { return config.ProviderOllama }
func (o *Ollama) Model() string         { return o.model }
func (o *Ollama) Configured() bool      { return o.baseURL != "" }
func (o *Ollama) CredentialKey() string { return "OLLAMA_BASE_URL" }

func (o *Ollama) Complete(ctx context.Context, system, prompt string) (string, error) {
	if !o.Configured() {
		return "", &MissingCredentialError{Provider: o.Name(), Key: o.CredentialKey()}
	}

	reqBody := ollamaChatRequest{
		Model:    o.model,
		Messages: []chatMessage{{Role: "system", Content: system}, {Role: "user", Content: prompt}},
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshalling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling Ollama API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("ollama API returned %d: %s", resp.StatusCode, string(body))
	}

	var result ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("ollama error: %s", result.Error)
	}

	o.logger.Debug("completion received", "provider", o.Name(), "model", o.model)
	return checkReply(result.Message.Content)
}
