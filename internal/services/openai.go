package services

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"
)

// OpenAIService answers questions through the Chat Completions API of OpenAI
// or any OpenAI-compatible endpoint.
type OpenAIService struct {
	client  openai.Client
	timeout time.Duration
	slots   rateSlots
}

func NewOpenAIService(apiKey, baseURL string, concurrentReqs int, timeout time.Duration) *OpenAIService {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &OpenAIService{
		client:  openai.NewClient(opts...),
		timeout: timeout,
		slots:   newRateSlots(concurrentReqs),
	}
}

func (s *OpenAIService) Name() string { return "openai" }

func (s *OpenAIService) Close() {}

func (s *OpenAIService) Ask(ctx context.Context, model, question string) (string, error) {
	if err := s.slots.acquire(ctx); err != nil {
		return "", err
	}
	defer s.slots.release()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(question),
		},
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("OpenAI returned no choices")
	}

	choice := resp.Choices[0]
	log.Debug().
		Str("model", resp.Model).
		Str("finish_reason", string(choice.FinishReason)).
		Int64("prompt_tokens", resp.Usage.PromptTokens).
		Int64("completion_tokens", resp.Usage.CompletionTokens).
		Msg("OpenAI completion finished")

	return choice.Message.Content, nil
}
