// Package anthropic wraps the official anthropic-sdk-go behind the small
// surface the analysis cascade needs, translating SDK failures into the
// shared resilience taxonomy.
package anthropic

import (
	"context"
	"errors"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"

	"github.com/ARobicsek/bible-figurative-language-sub000/internal/resilience"
)

// Client defines the Anthropic API operations used by the cascade.
type Client interface {
	CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error)
}

// MessageRequest is our own request type for CreateMessage.
type MessageRequest struct {
	Model       string
	MaxTokens   int64
	System      string
	Messages    []Message
	Temperature *float64
	// ThinkingBudget enables extended thinking with the given token budget
	// when > 0.
	ThinkingBudget int64
}

// Message represents a single conversational message.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// MessageResponse is our own response type from CreateMessage.
type MessageResponse struct {
	ID         string
	Model      string
	Text       string
	StopReason string
	Usage      TokenUsage
}

// TokenUsage tracks token consumption.
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
}

// sdkClient implements Client using the official anthropic-sdk-go.
type sdkClient struct {
	client sdk.Client
}

// NewClient creates a new Anthropic client backed by the SDK.
func NewClient(apiKey string) Client {
	return &sdkClient{
		client: sdk.NewClient(
			option.WithAPIKey(apiKey),
		),
	}
}

func (c *sdkClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: req.MaxTokens,
		Messages:  toSDKMessages(req.Messages),
	}

	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}

	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}

	if req.ThinkingBudget > 0 {
		params.Thinking = sdk.ThinkingConfigParamOfEnabled(req.ThinkingBudget)
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classifyErr(err)
	}

	return fromSDKMessage(msg), nil
}

// classifyErr maps SDK failures onto the shared taxonomy so the cascade can
// tell retryable transport trouble from policy refusals.
func classifyErr(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		wrapped := eris.Wrapf(err, "anthropic: create message (status %d)", apiErr.StatusCode)
		switch {
		case resilience.IsTransportHTTPStatus(apiErr.StatusCode):
			return resilience.NewTransportError(wrapped, apiErr.StatusCode)
		case apiErr.StatusCode == 400 || apiErr.StatusCode == 403:
			return resilience.NewPolicyRestrictedError(wrapped)
		default:
			return wrapped
		}
	}

	wrapped := eris.Wrap(err, "anthropic: create message")
	if resilience.IsTransport(err) {
		return resilience.NewTransportError(wrapped, 0)
	}
	return wrapped
}

// --- SDK type conversion helpers ---

func toSDKMessages(msgs []Message) []sdk.MessageParam {
	out := make([]sdk.MessageParam, len(msgs))
	for i, m := range msgs {
		block := sdk.NewTextBlock(m.Content)
		switch m.Role {
		case "assistant":
			out[i] = sdk.NewAssistantMessage(block)
		default:
			out[i] = sdk.NewUserMessage(block)
		}
	}
	return out
}

func fromSDKMessage(msg *sdk.Message) *MessageResponse {
	text := ""
	for _, b := range msg.Content {
		if b.Type == "text" {
			text += b.Text
		}
	}

	return &MessageResponse{
		ID:         msg.ID,
		Model:      string(msg.Model),
		Text:       text,
		StopReason: string(msg.StopReason),
		Usage: TokenUsage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		},
	}
}
