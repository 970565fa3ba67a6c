// Package cascade runs the tiered escalation chain for a single passage:
// a cheap fast model first, a stronger model with a deeper reasoning budget
// second, a structurally different vendor last. Transport trouble is retried
// at the current tier; policy refusals and truncation escalate to the next
// tier; exhausting the chain yields a terminal failed or truncated result,
// never a panic and never silently partial data.
package cascade

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ARobicsek/bible-figurative-language-sub000/internal/backend"
	"github.com/ARobicsek/bible-figurative-language-sub000/internal/extract"
	"github.com/ARobicsek/bible-figurative-language-sub000/internal/model"
	"github.com/ARobicsek/bible-figurative-language-sub000/internal/resilience"
)

// Result is the terminal outcome of running the chain for one passage.
type Result struct {
	// Outcome is complete, empty, truncated, or failed.
	Outcome model.Outcome
	// Candidates holds the decoded findings when Outcome is complete.
	Candidates []model.Candidate
	// Attempt describes the final backend call, including which tier
	// resolved the passage and whether escalation happened on the way.
	Attempt model.Attempt
	// Usage accumulates tokens across every attempt at every tier,
	// including retries.
	Usage model.TokenUsage
	// Err carries the terminal cause when Outcome is failed or truncated.
	Err error
}

// Cascade escalates a prompt through an ordered list of backends.
type Cascade struct {
	tiers  []backend.Backend
	retry  resilience.RetryConfig
	record func(backend string, usage model.TokenUsage)
	// requiredKeys is the per-record key set the completeness check expects.
	// Defaults to detection record keys; a validation cascade overrides it
	// with verdict keys.
	requiredKeys []string
}

// New builds a cascade over backends in escalation order. At least one
// backend is required.
func New(retry resilience.RetryConfig, tiers ...backend.Backend) (*Cascade, error) {
	if len(tiers) == 0 {
		return nil, eris.New("cascade: at least one backend required")
	}
	return &Cascade{tiers: tiers, retry: retry}, nil
}

// Tiers returns the number of configured tiers.
func (c *Cascade) Tiers() int { return len(c.tiers) }

// WithUsageRecorder registers a callback invoked with each backend call's
// token usage, including retries. Used to feed the shared cost tracker.
func (c *Cascade) WithUsageRecorder(record func(backend string, usage model.TokenUsage)) *Cascade {
	c.record = record
	return c
}

// WithRequiredKeys sets the per-record key set a complete response must
// carry. A fully keyed array overrides the truncation suspicion predicates,
// so a cascade judging verdict responses against detection keys would treat
// every complete verdict array as suspect.
func (c *Cascade) WithRequiredKeys(keys []string) *Cascade {
	c.requiredKeys = keys
	return c
}

// Run submits the prompt tier by tier until one produces a usable response
// or the chain is exhausted. ref identifies the passage in logs. Run never
// returns a non-nil error for ordinary failures; the terminal cause lives
// in Result.Err so a batch caller can record it and move on. The only error
// return is context cancellation.
func (c *Cascade) Run(ctx context.Context, system, prompt, ref string) (*Result, error) {
	result := &Result{}
	var lastErr error
	var lastAttempt model.Attempt

	for i, tier := range c.tiers {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "cascade: canceled")
		}

		tierNum := i + 1
		attempt, usage, err := c.runTier(ctx, tier, tierNum, system, prompt, ref)
		result.Usage.Add(usage)
		attempt.Escalated = i > 0

		if err == nil {
			result.Outcome = attempt.Outcome
			result.Candidates = attempt.Candidates
			result.Attempt = attempt
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "cascade: canceled")
		}

		lastErr = err
		lastAttempt = attempt
		if tierNum < len(c.tiers) {
			zap.L().Info("escalating to next tier",
				zap.String("ref", ref),
				zap.String("backend", tier.Name()),
				zap.Int("from_tier", tierNum),
				zap.String("failure_class", resilience.FailureClass(err)),
			)
		}
	}

	// Chain exhausted. Truncation at the last tier is reported as such so
	// the batch summary can count it separately from hard failures.
	result.Attempt = lastAttempt
	result.Err = lastErr
	if resilience.IsTruncated(lastErr) {
		result.Outcome = model.OutcomeTruncated
		result.Attempt.Outcome = model.OutcomeTruncated
	} else {
		result.Outcome = model.OutcomeFailed
		result.Attempt.Outcome = model.OutcomeFailed
	}
	zap.L().Warn("cascade exhausted",
		zap.String("ref", ref),
		zap.String("outcome", string(result.Outcome)),
		zap.Error(lastErr),
	)
	return result, nil
}

// runTier performs one tier's work: the backend call with transport-class
// retries, extraction, and the completeness check. A nil error means the
// attempt is terminal for the passage; a non-nil error asks the caller to
// escalate.
func (c *Cascade) runTier(ctx context.Context, tier backend.Backend, tierNum int, system, prompt, ref string) (model.Attempt, model.TokenUsage, error) {
	attempt := model.Attempt{Tier: tierNum, Backend: tier.Name()}
	var usage model.TokenUsage

	cfg := c.retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger(tier.Name(), ref)
	}

	resp, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*backend.Response, error) {
		r, err := tier.Submit(ctx, system, prompt)
		if r != nil {
			usage.Add(r.Usage)
			if c.record != nil {
				c.record(tier.Name(), r.Usage)
			}
		}
		return r, err
	})
	if err != nil {
		attempt.FailureClass = resilience.FailureClass(err)
		return attempt, usage, err
	}

	attempt.RawText = resp.Text
	attempt.Deliberation = extract.Deliberation(resp.Text)
	attempt.Usage = resp.Usage

	records, extractErr := extract.ExtractArray(resp.Text)
	extracted := extractErr == nil

	if comp := extract.DetectCompleteness(resp.Text, records, extracted, c.requiredKeys); comp.Truncated {
		err := &resilience.TruncatedOutputError{Reason: comp.Reason}
		attempt.FailureClass = resilience.FailureClass(err)
		zap.L().Debug("response judged truncated",
			zap.String("ref", ref),
			zap.String("backend", tier.Name()),
			zap.String("reason", comp.Reason),
		)
		return attempt, usage, err
	}

	if !extracted {
		// No structure and no truncation signal: the backend answered but
		// produced nothing parseable or empty-asserting. Recorded as an
		// empty result rather than retried, since retrying a well-formed
		// refusal to structure rarely changes it.
		attempt.FailureClass = resilience.FailureClass(extractErr)
		attempt.Outcome = model.OutcomeEmpty
		zap.L().Warn("no structure in response, recording empty result",
			zap.String("ref", ref),
			zap.String("backend", tier.Name()),
		)
		return attempt, usage, nil
	}

	attempt.Candidates = model.DecodeCandidates(records)
	if len(attempt.Candidates) == 0 {
		attempt.Outcome = model.OutcomeEmpty
	} else {
		attempt.Outcome = model.OutcomeComplete
	}
	return attempt, usage, nil
}
