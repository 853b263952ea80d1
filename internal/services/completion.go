package services

import (
	"context"
	"fmt"
	"time"

	"askmemo-backend/internal/config"
)

// CompletionService is a remote LLM that answers one question per call.
type CompletionService interface {
	Name() string
	Ask(ctx context.Context, model, question string) (string, error)
	Close()
}

// NewCompletionService builds the provider selected in cfg.
func NewCompletionService(cfg *config.Config) (CompletionService, error) {
	switch cfg.CompletionProvider {
	case config.ProviderOpenAI:
		return NewOpenAIService(cfg.CompletionAPIKey, cfg.OpenAIBaseURL, cfg.CompletionConcurrent, cfg.CompletionTimeout), nil
	case config.ProviderGemini:
		return NewGeminiService(cfg.CompletionAPIKey, cfg.CompletionConcurrent, cfg.CompletionTimeout)
	case config.ProviderAnthropic:
		return NewAnthropicService(cfg.CompletionAPIKey, cfg.AnthropicBaseURL, cfg.CompletionConcurrent, cfg.CompletionTimeout), nil
	default:
		return nil, fmt.Errorf("unknown completion provider %q", cfg.CompletionProvider)
	}
}

// rateSlots is a token bucket bounding in-flight completion requests.
type rateSlots chan struct{}

func newRateSlots(n int) rateSlots {
	if n < 1 {
		n = 1
	}
	slots := make(rateSlots, n)
	for i := 0; i < n; i++ {
		slots <- struct{}{}
	}
	return slots
}

// acquire blocks until a rate slot is available
func (r rateSlots) acquire(ctx context.Context) error {
	select {
	case <-r:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for completion rate slot")
	}
}

func (r rateSlots) release() {
	r <- struct{}{}
}
