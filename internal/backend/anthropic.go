package backend

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/ARobicsek/bible-figurative-language-sub000/internal/model"
	"github.com/ARobicsek/bible-figurative-language-sub000/pkg/anthropic"
)

type anthropicBackend struct {
	client  anthropic.Client
	profile Profile
	limiter *rate.Limiter
}

func newAnthropicBackend(profile Profile, apiKey string) Backend {
	return &anthropicBackend{
		client:  anthropic.NewClient(apiKey),
		profile: profile,
		limiter: newLimiter(profile),
	}
}

func (b *anthropicBackend) Name() string {
	return "anthropic/" + b.profile.Model
}

func (b *anthropicBackend) Submit(ctx context.Context, system, prompt string) (*Response, error) {
	callCtx, cancel, err := acquire(ctx, b.limiter, b.profile.Timeout)
	if err != nil {
		return nil, err
	}
	defer cancel()

	resp, err := b.client.CreateMessage(callCtx, anthropic.MessageRequest{
		Model:          b.profile.Model,
		MaxTokens:      int64(b.profile.MaxOutputTokens),
		System:         system,
		Messages:       []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature:    b.profile.Temperature,
		ThinkingBudget: int64(b.profile.ThinkingBudget),
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
