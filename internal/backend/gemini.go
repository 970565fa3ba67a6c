package backend

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/ARobicsek/bible-figurative-language-sub000/internal/model"
	"github.com/ARobicsek/bible-figurative-language-sub000/pkg/gemini"
)

type geminiBackend struct {
	client  gemini.Client
	profile Profile
	limiter *rate.Limiter
}

func newGeminiBackend(ctx context.Context, profile Profile, apiKey string) (Backend, error) {
	client, err := gemini.NewClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	return &geminiBackend{
		client:  client,
		profile: profile,
		limiter: newLimiter(profile),
	}, nil
}

func (b *geminiBackend) Name() string {
	return "gemini/" + b.profile.Model
}

func (b *geminiBackend) Submit(ctx context.Context, system, prompt string) (*Response, error) {
	callCtx, cancel, err := acquire(ctx, b.limiter, b.profile.Timeout)
	if err != nil {
		return nil, err
	}
	defer cancel()

	resp, err := b.client.GenerateContent(callCtx, gemini.GenerateRequest{
		Model:           b.profile.Model,
		System:          system,
		Prompt:          prompt,
		Temperature:     b.profile.Temperature,
		MaxOutputTokens: int32(b.profile.MaxOutputTokens),
		ThinkingBudget:  int32(b.profile.ThinkingBudget),
	})
	if err != nil {
		return nil, err
	}

	return &Response{
		Text: resp.Text,
		Usage: model.TokenUsage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		},
	}, nil
}
