// Package pipeline drives passages through detection, validation, and
// persistence with bounded concurrency. One passage's failure never aborts
// the batch; the summary separates clean results, hard failures, and
// unresolved truncations.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ARobicsek/bible-figurative-language-sub000/internal/cost"
	"github.com/ARobicsek/bible-figurative-language-sub000/internal/model"
	"github.com/ARobicsek/bible-figurative-language-sub000/internal/store"
	"github.com/ARobicsek/bible-figurative-language-sub000/internal/validate"
)

const defaultProgressEvery = 10

// Processor runs the full analysis for a batch of passages.
type Processor struct {
	detector      validate.Runner
	validator     *validate.Engine
	store         store.Store
	tracker       *cost.Tracker
	progressEvery int
}

// New creates a Processor. The detector runs the detection cascade, the
// validator re-examines its candidates, and results land in st.
func New(detector validate.Runner, validator *validate.Engine, st store.Store, tracker *cost.Tracker) *Processor {
	return &Processor{
		detector:      detector,
		validator:     validator,
		store:         st,
		tracker:       tracker,
		progressEvery: defaultProgressEvery,
	}
}

// WithProgressEvery sets the completed-unit cadence for progress logging.
func (p *Processor) WithProgressEvery(n int) *Processor {
	if n > 0 {
		p.progressEvery = n
	}
	return p
}

// Process runs all passages with at most concurrency workers. Per-passage
// failures are contained in the summary; the returned error is non-nil only
// for batch-level conditions such as cancellation.
func (p *Processor) Process(ctx context.Context, passages []model.Passage, concurrency int) (*model.Summary, error) {
	if concurrency <= 0 {
		concurrency = 6
	}

	var (
		mu        sync.Mutex
		units     []model.UnitOutcome
		completed atomic.Int64
	)
	total := len(passages)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, passage := range passages {
		g.Go(func() error {
			// Cooperative cancellation between units; in-flight calls
			// finish naturally.
			if gCtx.Err() != nil {
				return gCtx.Err()
			}

			unit, err := p.processOne(gCtx, passage)
			if err != nil {
				return err
			}

			mu.Lock()
			units = append(units, unit)
			mu.Unlock()

			if n := completed.Add(1); n%int64(p.progressEvery) == 0 || int(n) == total {
				zap.L().Info("batch progress",
					zap.Int64("completed", n),
					zap.Int("total", total),
				)
			}
			return nil
		})
	}

	err := g.Wait()

	summary := &model.Summary{Units: units}
	for _, u := range units {
		summary.Processed++
		switch u.Outcome {
		case model.OutcomeComplete, model.OutcomeEmpty:
			summary.Succeeded++
		case model.OutcomeTruncated:
			summary.TruncatedUnresolved++
		default:
			summary.Failed++
		}
	}
	if p.tracker != nil {
		summary.Usage = p.tracker.Total()
		summary.EstimatedCostUSD = p.tracker.EstimatedCostUSD()
	}

	if err != nil {
		return summary, eris.Wrap(err, "pipeline: batch interrupted")
	}
	return summary, nil
}

// processOne runs detection, validation, and persistence for one passage.
// Ordinary failures become the unit's outcome; only cancellation is
// returned as an error.
func (p *Processor) processOne(ctx context.Context, passage model.Passage) (model.UnitOutcome, error) {
	ref := passage.Reference()
	unit := model.UnitOutcome{Ref: ref}

	result, err := p.detector.Run(ctx, detectionSystemPrompt, buildDetectionPrompt(passage), ref)
	if err != nil {
		return unit, err
	}

	unit.Outcome = result.Outcome
	unit.Tier = result.Attempt.Tier
	if result.Err != nil {
		unit.Error = result.Err.Error()
	}

	if result.Outcome == model.OutcomeTruncated || result.Outcome == model.OutcomeFailed {
		if perr := p.persist(ctx, passage, result.Attempt, unit, nil); perr != nil {
			zap.L().Error("persist failed", zap.String("ref", ref), zap.Error(perr))
			unit.Outcome = model.OutcomeFailed
			unit.Error = perr.Error()
		}
		return unit, nil
	}

	unit.Candidates = len(result.Candidates)

	records, _, err := p.validator.Validate(ctx, passage, result.Candidates)
	if err != nil {
		if ctx.Err() != nil {
			return unit, err
		}
		zap.L().Warn("validation failed", zap.String("ref", ref), zap.Error(err))
		unit.Outcome = model.OutcomeFailed
		unit.Error = err.Error()
		if perr := p.persist(ctx, passage, result.Attempt, unit, nil); perr != nil {
			zap.L().Error("persist failed", zap.String("ref", ref), zap.Error(perr))
		}
		return unit, nil
	}

	for _, rec := range records {
		if rec.OverallPositive {
			unit.Positive++
		}
	}

	if perr := p.persist(ctx, passage, result.Attempt, unit, records); perr != nil {
		zap.L().Error("persist failed", zap.String("ref", ref), zap.Error(perr))
		unit.Outcome = model.OutcomeFailed
		unit.Error = perr.Error()
	}
	return unit, nil
}

// persist writes the passage row, its candidates, and their validation
// results. The store's keying by reference and correlation id makes the
// whole write idempotent under reprocessing.
func (p *Processor) persist(ctx context.Context, passage model.Passage, attempt model.Attempt, unit model.UnitOutcome, records []model.Record) error {
	passageID, err := p.store.InsertPassageResult(ctx, passage, attempt, unit)
	if err != nil {
		return err
	}

	for _, rec := range records {
		candidateID, err := p.store.InsertCandidate(ctx, passageID, rec.Candidate)
		if err != nil {
			return err
		}
		if err := p.store.UpdateValidation(ctx, candidateID, rec); err != nil {
			return err
		}
	}
	return nil
}
