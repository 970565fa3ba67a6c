package backend

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/ARobicsek/bible-figurative-language-sub000/internal/model"
	"github.com/ARobicsek/bible-figurative-language-sub000/pkg/openai"
)

type openaiBackend struct {
	client  openai.Client
	profile Profile
	limiter *rate.Limiter
}

func newOpenAIBackend(profile Profile, apiKey, baseURL string) Backend {
	opts := []openai.Option{}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	if profile.Model != "" {
		opts = append(opts, openai.WithModel(profile.Model))
	}
	return &openaiBackend{
		client:  openai.NewClient(apiKey, opts...),
		profile: profile,
		limiter: newLimiter(profile),
	}
}

func (b *openaiBackend) Name() string {
	return "openai/" + b.profile.Model
}

func (b *openaiBackend) Submit(ctx context.Context, system, prompt string) (*Response, error) {
	callCtx, cancel, err := acquire(ctx, b.limiter, b.profile.Timeout)
	if err != nil {
		return nil, err
	}
	defer cancel()

	messages := []openai.Message{}
	if system != "" {
		messages = append(messages, openai.Message{Role: "system", Content: system})
	}
	messages = append(messages, openai.Message{Role: "user", Content: prompt})

	req := openai.ChatCompletionRequest{
		Model:       b.profile.Model,
		Messages:    messages,
		Temperature: b.profile.Temperature,
	}
	if b.profile.MaxOutputTokens > 0 {
		maxTokens := b.profile.MaxOutputTokens
		req.MaxTokens = &maxTokens
	}

	resp, err := b.client.ChatCompletion(callCtx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, eris.New("openai: response has no choices")
	}

	return &Response{
		Text: resp.Choices[0].Message.Content,
		Usage: model.TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}
