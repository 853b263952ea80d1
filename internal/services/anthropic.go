package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicMaxTokens = 2048

type AnthropicService struct {
	client  anthropic.Client
	timeout time.Duration
	slots   rateSlots
}

func NewAnthropicService(apiKey, baseURL string, concurrentReqs int, timeout time.Duration) *AnthropicService {
	opts := []anthropicoption.RequestOption{anthropicoption.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, anthropicoption.WithBaseURL(baseURL))
	}

	return &AnthropicService{
		client:  anthropic.NewClient(opts...),
		timeout: timeout,
		slots:   newRateSlots(concurrentReqs),
	}
}

func (s *AnthropicService) Name() string { return "anthropic" }

func (s *AnthropicService) Close() {}

func (s *AnthropicService) Ask(ctx context.Context, model, question string) (string, error) {
	if err := s.slots.acquire(ctx); err != nil {
		return "", err
	}
	defer s.slots.release()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	msg, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: anthropicMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(question)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("Anthropic API error: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String(), nil
}
