// Package validate runs the second classification pass: every positive
// category flag on every candidate from detection is re-examined by an
// independent backend call, batched per passage, and resolved into a
// confirm, reject, or reclassify verdict. Every submitted (candidate,
// category) pair resolves deterministically; a pair the backend fails to
// answer for is rejected, never dropped.
package validate

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ARobicsek/bible-figurative-language-sub000/internal/cascade"
	"github.com/ARobicsek/bible-figurative-language-sub000/internal/extract"
	"github.com/ARobicsek/bible-figurative-language-sub000/internal/model"
)

// Runner submits one prompt through the escalation chain. Implemented by
// *cascade.Cascade.
type Runner interface {
	Run(ctx context.Context, system, prompt, ref string) (*cascade.Result, error)
}

// CorrelationError reports a verdict entry referencing a candidate id never
// submitted for this passage. Such entries are logged and dropped.
type CorrelationError struct {
	Ref      string
	ID       int
	Category string
}

func (e *CorrelationError) Error() string {
	return fmt.Sprintf("validation verdict for unknown candidate %d/%s in %s", e.ID, e.Category, e.Ref)
}

// Engine validates candidate sets.
type Engine struct {
	runner Runner
}

// New creates a validation engine over the given runner.
func New(runner Runner) *Engine {
	return &Engine{runner: runner}
}

// pair is one (candidate, category) slot submitted for judgement.
type pair struct {
	id       int
	category model.Category
}

// Validate judges every positive category slot on every candidate in one
// batched backend call and aggregates the verdicts into result records.
// A candidate with no positive categories is recorded without verdicts.
// An unrecoverable backend failure for the validation call fails the whole
// passage; partial verdict sets are never fabricated.
func (e *Engine) Validate(ctx context.Context, passage model.Passage, candidates []model.Candidate) ([]model.Record, model.TokenUsage, error) {
	var usage model.TokenUsage

	pairs := collectPairs(candidates)
	if len(pairs) == 0 {
		records := make([]model.Record, 0, len(candidates))
		for _, c := range candidates {
			records = append(records, model.NewRecord(c, nil))
		}
		return records, usage, nil
	}

	ref := passage.Reference()
	result, err := e.runner.Run(ctx, validationSystemPrompt, buildPrompt(passage, candidates), ref)
	if err != nil {
		return nil, usage, err
	}
	usage.Add(result.Usage)

	if result.Err != nil {
		return nil, usage, eris.Wrapf(result.Err, "validate: %s", ref)
	}

	verdicts := e.resolveVerdicts(ref, result.Attempt.RawText, pairs)

	records := make([]model.Record, 0, len(candidates))
	for _, c := range candidates {
		var own []model.Verdict
		for _, v := range verdicts {
			if v.CorrelationID == c.CorrelationID {
				own = append(own, v)
			}
		}
		records = append(records, model.NewRecord(c, own))
	}
	return records, usage, nil
}

// collectPairs lists every positive (candidate, category) slot, in stable
// candidate-then-category order.
func collectPairs(candidates []model.Candidate) []pair {
	var pairs []pair
	for _, c := range candidates {
		for _, cat := range c.PositiveCategories() {
			pairs = append(pairs, pair{id: c.CorrelationID, category: cat})
		}
	}
	return pairs
}

// resolveVerdicts correlates extracted verdict entries back to the submitted
// pairs. Unknown ids are dropped with a warning; submitted pairs with no
// recognizable entry are rejected.
func (e *Engine) resolveVerdicts(ref, raw string, pairs []pair) []model.Verdict {
	entries, err := extract.ExtractArray(raw)
	if err != nil {
		// The chain considered the response usable but no array materialized;
		// every submitted pair resolves to rejection.
		zap.L().Warn("validation response had no verdict array, rejecting all slots",
			zap.String("ref", ref),
			zap.Int("slots", len(pairs)),
		)
		entries = nil
	}

	submitted := make(map[pair]struct{}, len(pairs))
	for _, p := range pairs {
		submitted[p] = struct{}{}
	}

	resolved := make(map[pair]model.Verdict, len(pairs))
	for _, entry := range entries {
		v, p, ok := decodeVerdict(entry)
		if !ok {
			zap.L().Warn("malformed validation entry dropped",
				zap.String("ref", ref),
				zap.Any("entry", entry),
			)
			continue
		}
		if _, known := submitted[p]; !known {
			corrErr := &CorrelationError{Ref: ref, ID: p.id, Category: string(p.category)}
			zap.L().Warn("validation correlation failure", zap.Error(corrErr))
			continue
		}
		resolved[p] = v
	}

	verdicts := make([]model.Verdict, 0, len(pairs))
	for _, p := range pairs {
		if v, ok := resolved[p]; ok {
			verdicts = append(verdicts, v)
			continue
		}
		verdicts = append(verdicts, model.Verdict{
			CorrelationID: p.id,
			Category:      p.category,
			Decision:      model.DecisionRejected,
			Reason:        "no verdict returned for this slot",
		})
	}
	return verdicts
}

// decodeVerdict turns one extracted entry into a verdict. Entries missing an
// id or category, or carrying an unintelligible decision, are discarded as
// malformed so the slot falls back to rejection. A reclassification whose
// target is outside the closed category set, or equal to the original,
// downgrades to rejection.
func decodeVerdict(entry map[string]any) (model.Verdict, pair, bool) {
	id, ok := entryID(entry["id"])
	catStr, _ := entry["category"].(string)
	catStr = strings.ToLower(strings.TrimSpace(catStr))
	if !ok || !model.ValidCategory(catStr) {
		return model.Verdict{}, pair{}, false
	}
	p := pair{id: id, category: model.Category(catStr)}

	decision, _ := entry["decision"].(string)
	reason, _ := entry["reason"].(string)
	v := model.Verdict{
		CorrelationID: id,
		Category:      p.category,
		Reason:        reason,
	}

	switch strings.ToLower(strings.TrimSpace(decision)) {
	case "confirmed", "confirm", "valid":
		v.Decision = model.DecisionConfirmed
	case "rejected", "reject", "invalid":
		v.Decision = model.DecisionRejected
	case "reclassified", "reclassify":
		target, _ := entry["new_category"].(string)
		target = strings.ToLower(strings.TrimSpace(target))
		if !model.ValidCategory(target) || model.Category(target) == p.category {
			v.Decision = model.DecisionRejected
			v.Reason = "reclassification target invalid"
			break
		}
		v.Decision = model.DecisionReclassified
		v.NewCategory = model.Category(target)
	default:
		return model.Verdict{}, pair{}, false
	}

	return v, p, true
}

// entryID normalizes the id field: backends echo it as a JSON number or a
// numeric string.
func entryID(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case string:
		id, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return id, true
	}
	return 0, false
}
