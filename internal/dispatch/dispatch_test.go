package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tecbitlyfe/bitlyfe/internal/provider"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeProvider struct {
	name       string
	configured bool
	reply      string
	err        error
	block      bool // wait for ctx to end

	mu       sync.Mutex
	calls    int
	deadline time.Duration
	system   string
}

func (f *fakeProvider) Name() string          { return f.name }
func (f *fakeProvider) Model() string         { return f.name + "-model" }
func (f *fakeProvider) Configured() bool      { return f.configured }
func (f *fakeProvider) CredentialKey() string { return f.name + "_KEY" }

func (f *fakeProvider) Complete(ctx context.Context, system, _ string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.system = system
	if dl, ok := ctx.Deadline(); ok {
		f.deadline = time.Until(dl)
	}
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func ok(name string) *fakeProvider {
	return &fakeProvider{name: name, configured: true, reply: "hello from " + name}
}

func failing(name string) *fakeProvider {
	return &fakeProvider{name: name, configured: true, err: errors.New(name + " is down")}
}

func newTestDispatcher(ps ...provider.Provider) *Dispatcher {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(ps, Options{CallTimeout: time.Second, ChainTimeout: 3 * time.Second}, logger)
}

func TestDispatch_FallsBackInOrder(t *testing.T) {
	a, b, c := failing("A"), ok("B"), ok("C")
	d := newTestDispatcher(a, b, c)

	res, err := d.Dispatch(context.Background(), Request{Prompt: "hi", Preferred: Auto})
	require.NoError(t, err)
	assert.Equal(t, "B", res.Provider)
	assert.Equal(t, "hello from B", res.Response)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, 1, a.callCount())
	assert.Equal(t, 1, b.callCount())
	assert.Equal(t, 0, c.callCount())
}

func TestDispatch_SkipsUnconfigured(t *testing.T) {
	a := &fakeProvider{name: "A", configured: false, reply: "never"}
	b := ok("B")
	d := newTestDispatcher(a, b)

	res, err := d.Dispatch(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "B", res.Provider)
	assert.Equal(t, 0, a.callCount())
}

func TestDispatch_EmptyReplyIsFailure(t *testing.T) {
	a := &fakeProvider{name: "A", configured: true, reply: "   "}
	b := ok("B")
	d := newTestDispatcher(a, b)

	res, err := d.Dispatch(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "B", res.Provider)
}

func TestDispatch_AllFail(t *testing.T) {
	a := failing("A")
	b := &fakeProvider{name: "B", configured: true, reply: ""}
	c := failing("C")
	d := newTestDispatcher(a, b, c)

	res, err := d.Dispatch(context.Background(), Request{Prompt: "hi", Preferred: Auto})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrAllProvidersFailed)
	assert.ErrorIs(t, err, provider.ErrEmptyResponse)

	var all *AllProvidersFailedError
	require.True(t, errors.As(err, &all))
	require.Len(t, all.Attempts, 3)
	for _, p := range []*fakeProvider{a, b, c} {
		assert.Equal(t, 1, p.callCount(), "provider %s must be tried exactly once", p.name)
	}

	var ce *provider.CallError
	require.True(t, errors.As(all.Attempts[0], &ce))
	assert.Equal(t, "A", ce.Provider)
}

func TestDispatch_NoneConfigured(t *testing.T) {
	d := newTestDispatcher(&fakeProvider{name: "A"})
	_, err := d.Dispatch(context.Background(), Request{Prompt: "hi"})
	assert.ErrorIs(t, err, ErrAllProvidersFailed)
	assert.Contains(t, err.Error(), "no provider is configured")
}

func TestDispatch_NamedDoesNotFallBack(t *testing.T) {
	a, b := failing("A"), ok("B")
	d := newTestDispatcher(a, b)

	_, err := d.Dispatch(context.Background(), Request{Prompt: "hi", Preferred: "A"})
	assert.ErrorIs(t, err, ErrAllProvidersFailed)
	assert.Equal(t, 0, b.callCount())

	res, err := d.Dispatch(context.Background(), Request{Prompt: "hi", Preferred: "b"})
	require.NoError(t, err)
	assert.Equal(t, "B", res.Provider)
}

func TestDispatch_NamedMissingCredential(t *testing.T) {
	d := newTestDispatcher(&fakeProvider{name: "gemini"}, ok("B"))

	_, err := d.Dispatch(context.Background(), Request{Prompt: "hi", Preferred: "gemini"})
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrMissingCredential)

	var mc *provider.MissingCredentialError
	require.True(t, errors.As(err, &mc))
	assert.Equal(t, "gemini_KEY", mc.Key)
}

func TestDispatch_UnknownProvider(t *testing.T) {
	d := newTestDispatcher(ok("A"))
	_, err := d.Dispatch(context.Background(), Request{Prompt: "hi", Preferred: "skynet"})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestDispatch_DefaultSystemPreamble(t *testing.T) {
	a := ok("A")
	d := newTestDispatcher(a)
	_, err := d.Dispatch(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, DefaultSystem, a.system)

	_, err = d.Dispatch(context.Background(), Request{Prompt: "hi", System: "custom"})
	require.NoError(t, err)
	assert.Equal(t, "custom", a.system)
}

func TestDispatch_BudgetSplitsAcrossCandidates(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	a, b, c := failing("A"), failing("B"), ok("C")
	d := New([]provider.Provider{a, b, c}, Options{CallTimeout: time.Minute, ChainTimeout: 3 * time.Second}, logger)

	_, err := d.Dispatch(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	// First call gets a third of the chain, far below the one-minute call timeout.
	assert.LessOrEqual(t, a.deadline, time.Second+50*time.Millisecond)
	assert.Greater(t, a.deadline, time.Duration(0))
}

func TestDispatch_SlowProviderTimesOutThenFallsBack(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	slow := &fakeProvider{name: "slow", configured: true, block: true}
	fast := ok("fast")
	d := New([]provider.Provider{slow, fast}, Options{CallTimeout: 50 * time.Millisecond, ChainTimeout: time.Second}, logger)

	res, err := d.Dispatch(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "fast", res.Provider)
}

func TestDispatch_ParentCancelStopsChain(t *testing.T) {
	slow := &fakeProvider{name: "slow", configured: true, block: true}
	next := ok("next")
	d := newTestDispatcher(slow, next)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := d.Dispatch(ctx, Request{Prompt: "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, next.callCount())
}

func TestStatus(t *testing.T) {
	d := newTestDispatcher(ok("A"), &fakeProvider{name: "B"})
	st := d.Status()
	require.Len(t, st, 2)
	assert.Equal(t, "A", st[0].Name)
	assert.True(t, st[0].Configured)
	assert.False(t, st[1].Configured)
	assert.Equal(t, "B_KEY", st[1].CredentialKey)
}
