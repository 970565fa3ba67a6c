// Package backend presents every model vendor behind one Submit interface
// so the cascade can escalate between tiers without caring which SDK sits
// underneath. Each adapter enforces its tier's rate limit and per-call
// timeout and reports failures in the shared resilience taxonomy.
package backend

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/ARobicsek/bible-figurative-language-sub000/internal/model"
)

// Profile is the model configuration for one tier.
type Profile struct {
	// Vendor selects the adapter: "gemini", "anthropic", or "openai".
	Vendor string `mapstructure:"vendor"`
	Model  string `mapstructure:"model"`
	// MaxOutputTokens caps visible output. Higher tiers get larger caps so
	// escalation actually buys room for longer responses.
	MaxOutputTokens int `mapstructure:"max_output_tokens"`
	// ThinkingBudget allocates internal reasoning tokens where the vendor
	// supports it.
	ThinkingBudget int      `mapstructure:"thinking_budget"`
	Temperature    *float64 `mapstructure:"temperature"`
	// Timeout bounds a single request. Zero means no per-call deadline
	// beyond the caller's context.
	Timeout time.Duration `mapstructure:"timeout"`
	// RequestsPerMinute throttles calls to this tier. Zero disables
	// throttling.
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
}

// Response is a single model turn.
type Response struct {
	Text  string
	Usage model.TokenUsage
}

// Backend submits one prompt to one configured model.
type Backend interface {
	// Name identifies the backend for logs and attempt records,
	// e.g. "gemini/gemini-2.5-flash".
	Name() string
	Submit(ctx context.Context, system, prompt string) (*Response, error)
}

// Keys holds per-vendor credentials.
type Keys struct {
	Gemini    string `mapstructure:"gemini"`
	Anthropic string `mapstructure:"anthropic"`
	OpenAI    string `mapstructure:"openai"`
	// OpenAIBaseURL points the openai adapter at a compatible alternate
	// endpoint when set.
	OpenAIBaseURL string `mapstructure:"openai_base_url"`
}

// New builds the adapter for a tier profile.
func New(ctx context.Context, profile Profile, keys Keys) (Backend, error) {
	switch profile.Vendor {
	case "gemini":
		return newGeminiBackend(ctx, profile, keys.Gemini)
	case "anthropic":
		return newAnthropicBackend(profile, keys.Anthropic), nil
	case "openai":
		return newOpenAIBackend(profile, keys.OpenAI, keys.OpenAIBaseURL), nil
	default:
		return nil, eris.Errorf("backend: unknown vendor %q", profile.Vendor)
	}
}

// newLimiter returns a rate limiter for the profile, or nil when unthrottled.
func newLimiter(profile Profile) *rate.Limiter {
	if profile.RequestsPerMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(profile.RequestsPerMinute/60.0), 1)
}

// acquire waits for a limiter slot and applies the per-call timeout. The
// returned cancel must always be called.
func acquire(ctx context.Context, limiter *rate.Limiter, timeout time.Duration) (context.Context, context.CancelFunc, error) {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, nil, eris.Wrap(err, "backend: rate limit wait")
		}
	}
	if timeout > 0 {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		return callCtx, cancel, nil
	}
	return ctx, func() {}, nil
}
