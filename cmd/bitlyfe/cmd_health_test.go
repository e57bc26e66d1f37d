package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tecbitlyfe/bitlyfe/internal/provider"
)

type probeStub struct {
	name       string
	configured bool
	err        error
	calls      *atomic.Int32
}

func (p *probeStub) Name() string          { return p.name }
func (p *probeStub) Model() string         { return "m" }
func (p *probeStub) Configured() bool      { return p.configured }
func (p *probeStub) CredentialKey() string { return "KEY" }

func (p *probeStub) Complete(ctx context.Context, _, _ string) (string, error) {
	p.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return "", errors.New("no deadline")
	}
	if p.err != nil {
		return "", p.err
	}
	return "pong", nil
}

func TestProbeProviders(t *testing.T) {
	var calls atomic.Int32
	down := errors.New("down")
	ps := []provider.Provider{
		&probeStub{name: "a", configured: true, calls: &calls},
		&probeStub{name: "b", configured: false, calls: &calls},
		&probeStub{name: "c", configured: true, err: down, calls: &calls},
	}

	got := probeProviders(context.Background(), ps, time.Second)
	require.Len(t, got, 3)
	assert.NoError(t, got[0])
	assert.NoError(t, got[1])
	assert.ErrorIs(t, got[2], down)
	assert.Equal(t, int32(2), calls.Load())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdef", 2))
	assert.Equal(t, "a b", truncate("a\nb", 10))
}
