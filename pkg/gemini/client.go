// Package gemini wraps the google.golang.org/genai SDK behind the small
// surface the analysis cascade needs, translating SDK failures into the
// shared resilience taxonomy.
package gemini

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"

	"github.com/ARobicsek/bible-figurative-language-sub000/internal/resilience"
)

// Client defines the Gemini API operations used by the cascade.
type Client interface {
	GenerateContent(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// GenerateRequest is our own request type for GenerateContent.
type GenerateRequest struct {
	Model       string
	System      string
	Prompt      string
	Temperature *float64
	// MaxOutputTokens caps the visible output when > 0.
	MaxOutputTokens int32
	// ThinkingBudget allocates internal reasoning tokens when > 0.
	ThinkingBudget int32
}

// GenerateResponse is our own response type from GenerateContent.
type GenerateResponse struct {
	Text         string
	FinishReason string
	Usage        TokenUsage
}

// TokenUsage tracks token consumption.
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
}

type sdkClient struct {
	client *genai.Client
}

// NewClient creates a Gemini client backed by the genai SDK.
func NewClient(ctx context.Context, apiKey string) (Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}
	return &sdkClient{client: client}, nil
}

func (c *sdkClient) GenerateContent(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Temperature != nil {
		t := float32(*req.Temperature)
		cfg.Temperature = &t
	}
	if req.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = req.MaxOutputTokens
	}
	if req.ThinkingBudget > 0 {
		budget := req.ThinkingBudget
		cfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: &budget}
	}

	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}

	resp, err := c.client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return nil, classifyErr(err)
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, resilience.NewPolicyRestrictedError(
			eris.Errorf("gemini: prompt blocked: %s", resp.PromptFeedback.BlockReason))
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, eris.New("gemini: empty response")
	}

	cand := resp.Candidates[0]
	if cand.FinishReason == genai.FinishReasonSafety ||
		cand.FinishReason == genai.FinishReasonProhibitedContent {
		return nil, resilience.NewPolicyRestrictedError(
			eris.Errorf("gemini: generation blocked: %s", cand.FinishReason))
	}

	text := ""
	for _, part := range cand.Content.Parts {
		if part.Thought {
			continue
		}
		text += part.Text
	}

	out := &GenerateResponse{
		Text:         text,
		FinishReason: string(cand.FinishReason),
	}
	if resp.UsageMetadata != nil {
		out.Usage = TokenUsage{
			InputTokens:  int64(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int64(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return out, nil
}

// classifyErr maps SDK failures onto the shared taxonomy.
func classifyErr(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		wrapped := eris.Wrapf(err, "gemini: generate content (status %d)", apiErr.Code)
		if resilience.IsTransportHTTPStatus(apiErr.Code) {
			return resilience.NewTransportError(wrapped, apiErr.Code)
		}
		return wrapped
	}

	wrapped := eris.Wrap(err, "gemini: generate content")
	if resilience.IsTransport(err) {
		return resilience.NewTransportError(wrapped, 0)
	}
	return wrapped
}
