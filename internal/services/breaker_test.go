package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/tanya-ai-go/internal/assistant"
)

var errVendor = errors.New("vendor down")

func failing(context.Context) error { return errVendor }
func succeeding(context.Context) error { return nil }

func newTestBreaker(clock *time.Time) *CircuitBreaker {
	cb := NewCircuitBreaker("llm", BreakerConfig{FailureThreshold: 2, SuccessThreshold: 2, OpenTimeout: time.Minute}, quietLogger())
	cb.now = func() time.Time { return *clock }
	return cb
}

func TestCircuitBreaker_Lifecycle(t *testing.T) {
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := newTestBreaker(&clock)
	ctx := context.Background()

	assert.ErrorIs(t, cb.Execute(ctx, failing), errVendor)
	assert.Equal(t, BreakerClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, failing), errVendor)
	assert.Equal(t, BreakerOpen, cb.State())

	called := false
	err := cb.Execute(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	clock = clock.Add(time.Minute)
	require.NoError(t, cb.Execute(ctx, succeeding))
	assert.Equal(t, BreakerHalfOpen, cb.State())
	require.NoError(t, cb.Execute(ctx, succeeding))
	assert.Equal(t, BreakerClosed, cb.State())

	stats := cb.Stats()
	assert.Equal(t, "llm", stats.Name)
	assert.Equal(t, "closed", stats.State)
	assert.Equal(t, int64(5), stats.Requests)
	assert.Equal(t, int64(2), stats.Failures)
	assert.Equal(t, int64(1), stats.Rejected)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := newTestBreaker(&clock)
	ctx := context.Background()

	_ = cb.Execute(ctx, failing)
	_ = cb.Execute(ctx, failing)
	clock = clock.Add(2 * time.Minute)

	assert.ErrorIs(t, cb.Execute(ctx, failing), errVendor)
	assert.Equal(t, BreakerOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, succeeding), ErrCircuitOpen)
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	clock := time.Now()
	cb := newTestBreaker(&clock)
	ctx := context.Background()

	_ = cb.Execute(ctx, failing)
	require.NoError(t, cb.Execute(ctx, succeeding))
	_ = cb.Execute(ctx, failing)
	assert.Equal(t, BreakerClosed, cb.State())
}

func TestCircuitBreaker_CallerCancellationIsNotAFailure(t *testing.T) {
	clock := time.Now()
	cb := newTestBreaker(&clock)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 3; i++ {
		_ = cb.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
	}
	assert.Equal(t, BreakerClosed, cb.State())
	assert.Zero(t, cb.Stats().Failures)
}

func TestCircuitBreaker_PanicReleasesSlot(t *testing.T) {
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := newTestBreaker(&clock)
	ctx := context.Background()

	_ = cb.Execute(ctx, failing)
	_ = cb.Execute(ctx, failing)
	clock = clock.Add(time.Minute)
	require.Equal(t, BreakerHalfOpen, cb.State())

	assert.PanicsWithValue(t, "decoder bug", func() {
		_ = cb.Execute(ctx, func(context.Context) error { panic("decoder bug") })
	})
	assert.Equal(t, BreakerOpen, cb.State())
	assert.Equal(t, int64(3), cb.Stats().Failures)

	clock = clock.Add(time.Minute)
	require.NoError(t, cb.Execute(ctx, succeeding))
	assert.Equal(t, BreakerHalfOpen, cb.State())
}

func TestCircuitBreaker_IdleOpenReportsHalfOpen(t *testing.T) {
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := newTestBreaker(&clock)
	ctx := context.Background()

	_ = cb.Execute(ctx, failing)
	_ = cb.Execute(ctx, failing)
	assert.Equal(t, "open", cb.Stats().State)

	clock = clock.Add(59 * time.Second)
	assert.Equal(t, "open", cb.Stats().State)

	clock = clock.Add(time.Second)
	assert.Equal(t, "half-open", cb.Stats().State)
	assert.Equal(t, BreakerHalfOpen, cb.State())
	assert.Equal(t, int64(2), cb.Stats().Requests)
}

func TestBreakerState_String(t *testing.T) {
	assert.Equal(t, "half-open", BreakerHalfOpen.String())
	assert.Equal(t, "unknown", BreakerState(42).String())
}

func TestBreakerRegistry(t *testing.T) {
	r := NewBreakerRegistry(BreakerConfig{}, quietLogger())

	assert.Same(t, r.Get("ultravox"), r.Get("ultravox"))
	r.Get("llm")

	stats := r.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, "llm", stats[0].Name)
	assert.Equal(t, "ultravox", stats[1].Name)
}

type stubLLM struct {
	err   error
	calls int
}

func (s *stubLLM) Complete(context.Context, assistant.ChatRequest) (string, error) {
	s.calls++
	return "answer", s.err
}

func (s *stubLLM) Transcribe(context.Context, []byte, string) (string, error) {
	s.calls++
	return "words", s.err
}

func TestGuardedLLM(t *testing.T) {
	clock := time.Now()
	inner := &stubLLM{}
	llm := NewGuardedLLM(inner, newTestBreaker(&clock))
	ctx := context.Background()

	out, err := llm.Complete(ctx, assistant.ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, "answer", out)

	out, err = llm.Transcribe(ctx, nil, "a.ogg")
	require.NoError(t, err)
	assert.Equal(t, "words", out)

	inner.err = errVendor
	_, _ = llm.Complete(ctx, assistant.ChatRequest{})
	_, _ = llm.Complete(ctx, assistant.ChatRequest{})
	_, err = llm.Complete(ctx, assistant.ChatRequest{})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 4, inner.calls)
}

type stubCalls struct{ err error }

func (s stubCalls) CreateCall(context.Context, string) (string, error) {
	return "wss://join", s.err
}

func TestGuardedCallCreator(t *testing.T) {
	clock := time.Now()
	calls := NewGuardedCallCreator(stubCalls{}, newTestBreaker(&clock))

	url, err := calls.CreateCall(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "wss://join", url)
}
