package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tecbitlyfe/bitlyfe/internal/config"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestOpenAICompat_Complete(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  hello there  "}}]}`))
	}))
	defer srv.Close()

	p := NewOpenAI(config.KeyedConfig{APIKey: "sk-test", Model: "gpt-test", BaseURL: srv.URL + "/v1"}, newTestLogger())
	reply, err := p.Complete(context.Background(), "be kind", "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello there", reply)
	assert.Equal(t, "gpt-test", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "be kind", got.Messages[0].Content)
	assert.Equal(t, "hi", got.Messages[1].Content)
}

func TestOpenAICompat_EmptyReplyFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"   "}}]}`))
	}))
	defer srv.Close()

	p := NewOpenRouter(config.KeyedConfig{APIKey: "k", BaseURL: srv.URL}, newTestLogger())
	_, err := p.Complete(context.Background(), "", "hi")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestOpenAICompat_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewGitHub(config.KeyedConfig{APIKey: "ghp", BaseURL: srv.URL}, newTestLogger())
	_, err := p.Complete(context.Background(), "", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestAzure_UsesAPIKeyHeaderAndDeploymentPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/openai/deployments/chat-dep/chat/completions", r.URL.Path)
		assert.Equal(t, "2024-06-01", r.URL.Query().Get("api-version"))
		assert.Equal(t, "az-key", r.Header.Get("api-key"))
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"azure says hi"}}]}`))
	}))
	defer srv.Close()

	p := NewAzure(config.AzureConfig{
		APIKey: "az-key", Endpoint: srv.URL, Deployment: "chat-dep", APIVersion: "2024-06-01",
	}, newTestLogger())
	reply, err := p.Complete(context.Background(), "sys", "hi")
	require.NoError(t, err)
	assert.Equal(t, "azure says hi", reply)
}

func TestAzure_MissingEndpointNamesKey(t *testing.T) {
	p := NewAzure(config.AzureConfig{APIKey: "az-key"}, newTestLogger())
	assert.False(t, p.Configured())
	assert.Equal(t, "AZURE_OPENAI_ENDPOINT", p.CredentialKey())

	_, err := p.Complete(context.Background(), "", "hi")
	var mc *MissingCredentialError
	require.True(t, errors.As(err, &mc))
	assert.Equal(t, "AZURE_OPENAI_ENDPOINT", mc.Key)
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestOllama_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req ollamaChatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Equal(t, "llama3.2", req.Model)
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"local reply"},"done":true}`))
	}))
	defer srv.Close()

	p := NewOllama(config.OllamaConfig{BaseURL: srv.URL + "/", Model: "llama3.2"}, newTestLogger())
	reply, err := p.Complete(context.Background(), "sys", "hi")
	require.NoError(t, err)
	assert.Equal(t, "local reply", reply)
}

func TestOllama_NotConfigured(t *testing.T) {
	p := NewOllama(config.OllamaConfig{}, newTestLogger())
	assert.False(t, p.Configured())
	_, err := p.Complete(context.Background(), "", "hi")
	assert.ErrorIs(t, err, ErrMissingCredential)
	assert.Contains(t, err.Error(), "OLLAMA_BASE_URL")
}

func TestClaude_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "ant-key", r.Header.Get("X-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-test",
			"content": [{"type": "text", "text": "purr"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 3, "output_tokens": 1}
		}`))
	}))
	defer srv.Close()

	p := NewClaude(config.KeyedConfig{APIKey: "ant-key", Model: "claude-test", BaseURL: srv.URL}, newTestLogger())
	reply, err := p.Complete(context.Background(), "sys", "hi")
	require.NoError(t, err)
	assert.Equal(t, "purr", reply)
}

func TestCredentialsAndConfigured(t *testing.T) {
	tests := []struct {
		p          Provider
		configured bool
		key        string
	}{
		{NewGemini(config.KeyedConfig{}, newTestLogger()), false, "GEMINI_API_KEY"},
		{NewGemini(config.KeyedConfig{APIKey: "g"}, newTestLogger()), true, "GEMINI_API_KEY"},
		{NewClaude(config.KeyedConfig{}, newTestLogger()), false, "ANTHROPIC_API_KEY"},
		{NewOpenAI(config.KeyedConfig{}, newTestLogger()), false, "OPENAI_API_KEY"},
		{NewGitHub(config.KeyedConfig{}, newTestLogger()), false, "GITHUB_TOKEN"},
		{NewOpenRouter(config.KeyedConfig{}, newTestLogger()), false, "OPENROUTER_API_KEY"},
		{NewAzure(config.AzureConfig{}, newTestLogger()), false, "AZURE_OPENAI_API_KEY"},
	}
	for _, tt := range tests {
		t.Run(tt.p.Name()+"/"+tt.key, func(t *testing.T) {
			assert.Equal(t, tt.configured, tt.p.Configured())
			assert.Equal(t, tt.key, tt.p.CredentialKey())
		})
	}
}

func TestFromConfig_PreservesOrder(t *testing.T) {
	cfg := config.ProvidersConfig{Order: []string{"claude", "ollama", "gemini"}}
	ps, err := FromConfig(cfg, newTestLogger())
	require.NoError(t, err)
	require.Len(t, ps, 3)
	assert.Equal(t, "claude", ps[0].Name())
	assert.Equal(t, "ollama", ps[1].Name())
	assert.Equal(t, "gemini", ps[2].Name())

	_, err = FromConfig(config.ProvidersConfig{Order: []string{"nope"}}, newTestLogger())
	assert.Error(t, err)
}

func TestCallError_Unwraps(t *testing.T) {
	err := &CallError{Provider: "gemini", Err: ErrEmptyResponse}
	assert.ErrorIs(t, err, ErrEmptyResponse)
	assert.Contains(t, err.Error(), "gemini")
}
