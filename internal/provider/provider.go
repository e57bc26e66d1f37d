// Package provider adapts external chat-completion APIs to one uniform call
// interface consumed by the dispatcher.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Provider is one chat-completion backend.
type Provider interface {
	// Name is the stable identifier used in providers.order and API requests.
	Name() string

	// Model is the model or deployment the provider will call.
	Model() string

	// Configured reports whether every credential the provider needs is present.
	Configured() bool

	// CredentialKey names the configuration value that is missing, or the
	// primary credential key when the provider is configured.
	CredentialKey() string

	// Complete sends a system preamble and a prompt and returns the reply text.
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// ErrMissingCredential matches every *MissingCredentialError.
var ErrMissingCredential = errors.New("missing credential")

// ErrEmptyResponse is returned when a provider answers with no text.
var ErrEmptyResponse = errors.New("empty response")

// MissingCredentialError reports a provider requested by name without its credential.
type MissingCredentialError struct {
	Provider string
	Key      string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("provider %s: missing credential: set %s", e.Provider, e.Key)
}

// Is lets errors.Is(err, ErrMissingCredential) match.
func (e *MissingCredentialError) Is(target error) bool {
	return target == ErrMissingCredential
}

// CallError wraps a single provider failure.
type CallError struct {
	Provider string
	Err      error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// checkReply normalizes a reply and rejects empty ones.
func checkReply(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// newHTTPClient returns the client used by the HTTP-based providers. Deadlines
// come from the caller's context, so no client-level timeout is set.
func newHTTPClient() *http.Client {
	return &http.Client{}
}
