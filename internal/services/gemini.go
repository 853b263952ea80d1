package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

type GeminiService struct {
	client  *genai.Client
	timeout time.Duration
	slots   rateSlots
}

func NewGeminiService(apiKey string, concurrentReqs int, timeout time.Duration) (*GeminiService, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiService{
		client:  client,
		timeout: timeout,
		slots:   newRateSlots(concurrentReqs),
	}, nil
}

func (s *GeminiService) Name() string { return "gemini" }

func (s *GeminiService) Close() {
	s.client.Close()
}

func (s *GeminiService) Ask(ctx context.Context, model, question string) (string, error) {
	if err := s.slots.acquire(ctx); err != nil {
		return "", err
	}
	defer s.slots.release()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	m := s.client.GenerativeModel(model)
	m.SetTopP(0.95)

	resp, err := m.GenerateContent(ctx, genai.Text(question))
	if err != nil {
		return "", fmt.Errorf("Gemini API error: %w", err)
	}

	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop {
			log.Warn().Int("candidate", i).Str("finish_reason", cand.FinishReason.String()).Msg("Gemini stopped early")
		}
	}

	return extractText(resp), nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
