// Package dispatch routes a prompt to the first provider that answers,
// walking an ordered fallback chain under one aggregate deadline.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tecbitlyfe/bitlyfe/internal/metrics"
	"github.com/tecbitlyfe/bitlyfe/internal/provider"
)

// Auto selects the fallback chain instead of a named provider.
const Auto = "auto"

// DefaultSystem is used when a request carries no system preamble.
const DefaultSystem = "You are a friendly AI companion. Answer warmly and concisely."

// ErrAllProvidersFailed matches every *AllProvidersFailedError.
var ErrAllProvidersFailed = errors.New("all providers failed")

// ErrUnknownProvider is returned when a named provider is not registered.
var ErrUnknownProvider = errors.New("unknown provider")

// AllProvidersFailedError is terminal: every candidate failed or none was configured.
type AllProvidersFailedError struct {
	Attempts []error
}

func (e *AllProvidersFailedError) Error() string {
	if len(e.Attempts) == 0 {
		return "all providers failed: no provider is configured"
	}
	msgs := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		msgs[i] = a.Error()
	}
	return fmt.Sprintf("all providers failed (%d attempted): %s", len(e.Attempts), strings.Join(msgs, "; "))
}

// Is lets errors.Is(err, ErrAllProvidersFailed) match.
func (e *AllProvidersFailedError) Is(target error) bool { return target == ErrAllProvidersFailed }

// Unwrap exposes each attempt's error.
func (e *AllProvidersFailedError) Unwrap() []error { return e.Attempts }

// Request is one dispatch call.
type Request struct {
	Prompt    string
	Preferred string // provider name, or "" / Auto for the fallback chain
	System    string
}

// Result is the first successful completion.
type Result struct {
	Response string
	Provider string
	Model    string
	Elapsed  time.Duration
	Attempts int
}

// Options bounds individual calls and the whole chain.
type Options struct {
	CallTimeout  time.Duration
	ChainTimeout time.Duration
}

// ProviderStatus describes one registered provider for health output.
type ProviderStatus struct {
	Name          string `json:"name"`
	Model         string `json:"model"`
	Configured    bool   `json:"configured"`
	CredentialKey string `json:"credential_key"`
}

// Dispatcher owns the ordered provider list.
type Dispatcher struct {
	providers []provider.Provider
	opts      Options
	logger    *slog.Logger
}

// New creates a Dispatcher. The order of providers is the fallback order.
func New(providers []provider.Provider, opts Options, logger *slog.Logger) *Dispatcher {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 30 * time.Second
	}
	return &Dispatcher{
		providers: providers,
		opts:      opts,
		logger:    logger,
	}
}

// Status reports every registered provider in fallback order.
func (d *Dispatcher) Status() []ProviderStatus {
	out := make([]ProviderStatus, 0, len(d.providers))
	for _, p := range d.providers {
		out = append(out, ProviderStatus{
			Name:          p.Name(),
			Model:         p.Model(),
			Configured:    p.Configured(),
			CredentialKey: p.CredentialKey(),
		})
	}
	return out
}

// Providers returns the registered providers in fallback order.
func (d *Dispatcher) Providers() []provider.Provider {
	return append([]provider.Provider(nil), d.providers...)
}

// Dispatch sends req to a named provider, or walks the configured providers
// in order until one returns a non-empty reply. Each provider is tried at
// most once. Cancelling ctx stops the chain.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*Result, error) {
	metrics.Inc(metrics.DispatchTotal)
	if req.System == "" {
		req.System = DefaultSystem
	}

	candidates, err := d.candidates(req.Preferred)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		metrics.Inc(metrics.AllFailed)
		return nil, &AllProvidersFailedError{}
	}

	chainCtx := ctx
	if d.opts.ChainTimeout > 0 {
		var cancel context.CancelFunc
		chainCtx, cancel = context.WithTimeout(ctx, d.opts.ChainTimeout)
		defer cancel()
	}

	var attempts []error
	for i, p := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("dispatch interrupted: %w", err)
		}
		if err := chainCtx.Err(); err != nil {
			attempts = append(attempts, &provider.CallError{
				Provider: p.Name(),
				Err:      fmt.Errorf("chain deadline reached before call: %w", err),
			})
			continue
		}

		start := time.Now()
		reply, err := d.call(chainCtx, p, req, len(candidates)-i)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("dispatch interrupted: %w", ctx.Err())
			}
			metrics.IncProviderFailure(p.Name())
			d.logger.Warn("provider failed", "provider", p.Name(), "error", err)
			attempts = append(attempts, &provider.CallError{Provider: p.Name(), Err: err})
			continue
		}

		if i > 0 {
			metrics.Inc(metrics.FallbackUsed)
		}
		d.logger.Debug("provider answered", "provider", p.Name(), "attempt", i+1)
		return &Result{
			Response: reply,
			Provider: p.Name(),
			Model:    p.Model(),
			Elapsed:  time.Since(start),
			Attempts: i + 1,
		}, nil
	}

	metrics.Inc(metrics.AllFailed)
	return nil, &AllProvidersFailedError{Attempts: attempts}
}

// candidates resolves the providers a request may use.
func (d *Dispatcher) candidates(preferred string) ([]provider.Provider, error) {
	if preferred == "" || strings.EqualFold(preferred, Auto) {
		var out []provider.Provider
		for _, p := range d.providers {
			if p.Configured() {
				out = append(out, p)
			}
		}
		return out, nil
	}
	for _, p := range d.providers {
		if strings.EqualFold(p.Name(), preferred) {
			if !p.Configured() {
				return nil, &provider.MissingCredentialError{Provider: p.Name(), Key: p.CredentialKey()}
			}
			return []provider.Provider{p}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, preferred)
}

// call runs one provider under its share of the remaining chain budget.
func (d *Dispatcher) call(chainCtx context.Context, p provider.Provider, req Request, remaining int) (string, error) {
	callCtx, cancel := context.WithTimeout(chainCtx, d.budget(chainCtx, remaining))
	defer cancel()

	reply, err := p.Complete(callCtx, req.System, req.Prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(reply) == "" {
		return "", provider.ErrEmptyResponse
	}
	return reply, nil
}

// budget is min(call timeout, time left in the chain / remaining candidates).
func (d *Dispatcher) budget(chainCtx context.Context, remaining int) time.Duration {
	b := d.opts.CallTimeout
	if deadline, ok := chainCtx.Deadline(); ok && remaining > 0 {
		share := time.Until(deadline) / time.Duration(remaining)
		if share < b {
			b = share
		}
	}
	return b
}
