package services

import (
	"context"

	"github.com/irfndi/tanya-ai-go/internal/assistant"
)

// GuardedLLM routes model calls through a circuit breaker.
type GuardedLLM struct {
	next    assistant.LLM
	breaker *CircuitBreaker
}

func NewGuardedLLM(next assistant.LLM, breaker *CircuitBreaker) *GuardedLLM {
	return &GuardedLLM{next: next, breaker: breaker}
}

func (g *GuardedLLM) Complete(ctx context.Context, req assistant.ChatRequest) (string, error) {
	var out string
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.next.Complete(ctx, req)
		return err
	})
	return out, err
}

func (g *GuardedLLM) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	var out string
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.next.Transcribe(ctx, audio, filename)
		return err
	})
	return out, err
}

// GuardedCallCreator routes voice agent call creation through a breaker.
type GuardedCallCreator struct {
	next    assistant.CallCreator
	breaker *CircuitBreaker
}

func NewGuardedCallCreator(next assistant.CallCreator, breaker *CircuitBreaker) *GuardedCallCreator {
	return &GuardedCallCreator{next: next, breaker: breaker}
}

func (g *GuardedCallCreator) CreateCall(ctx context.Context, systemPrompt string) (string, error) {
	var joinURL string
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		joinURL, err = g.next.CreateCall(ctx, systemPrompt)
		return err
	})
	return joinURL, err
}
