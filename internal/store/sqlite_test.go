package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ARobicsek/bible-figurative-language-sub000/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "figlang.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

var psalm23 = model.Passage{
	Book: "Psalms", Chapter: 23, Verse: 1,
	EnglishText: "The LORD is my shepherd; I shall not want.",
}

func insertCompletePassage(t *testing.T, s *SQLiteStore) string {
	t.Helper()
	id, err := s.InsertPassageResult(context.Background(), psalm23,
		model.Attempt{Tier: 1, Backend: "gemini/gemini-2.5-flash", Deliberation: "Shepherd imagery."},
		model.UnitOutcome{Ref: psalm23.Reference(), Outcome: model.OutcomeComplete, Candidates: 1},
	)
	require.NoError(t, err)
	return id
}

func TestSQLiteInsertPassageIdempotent(t *testing.T) {
	t.Parallel()
	s := newTestSQLite(t)

	first := insertCompletePassage(t, s)
	second := insertCompletePassage(t, s)
	assert.Equal(t, first, second, "reprocessing keeps the original row id")

	results, err := s.ListResults(context.Background(), ResultFilter{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Psalms 23:1", results[0].Ref)
	assert.Equal(t, model.OutcomeComplete, results[0].Outcome)
	assert.Equal(t, 1, results[0].Tier)
}

func TestSQLiteCandidateRoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestSQLite(t)
	ctx := context.Background()

	passageID := insertCompletePassage(t, s)

	c := model.Candidate{
		CorrelationID:  1,
		Figurative:     true,
		Metaphor:       true,
		FigurativeText: "The LORD is my shepherd",
		Explanation:    "God as shepherd",
		Confidence:     0.95,
	}
	candID, err := s.InsertCandidate(ctx, passageID, c)
	require.NoError(t, err)

	// Upserting the same correlation id keeps the original storage id.
	again, err := s.InsertCandidate(ctx, passageID, c)
	require.NoError(t, err)
	assert.Equal(t, candID, again)

	rec := model.NewRecord(c, []model.Verdict{{
		CorrelationID: 1,
		Category:      model.CategoryMetaphor,
		Decision:      model.DecisionConfirmed,
	}})
	require.NoError(t, s.UpdateValidation(ctx, candID, rec))

	results, err := s.ListResults(ctx, ResultFilter{PositiveOnly: true})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Candidates)
	assert.Equal(t, 1, results[0].Positive)
}

func TestSQLiteReprocessingClearsOldCandidates(t *testing.T) {
	t.Parallel()
	s := newTestSQLite(t)
	ctx := context.Background()

	passageID := insertCompletePassage(t, s)
	_, err := s.InsertCandidate(ctx, passageID, model.Candidate{CorrelationID: 1, Metaphor: true})
	require.NoError(t, err)
	_, err = s.InsertCandidate(ctx, passageID, model.Candidate{CorrelationID: 2, Simile: true})
	require.NoError(t, err)

	// Second run of the same passage found only one candidate.
	passageID = insertCompletePassage(t, s)
	_, err = s.InsertCandidate(ctx, passageID, model.Candidate{CorrelationID: 1, Metaphor: true})
	require.NoError(t, err)

	results, err := s.ListResults(ctx, ResultFilter{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Candidates)
}

func TestSQLiteUpdateValidationUnknownCandidate(t *testing.T) {
	t.Parallel()
	s := newTestSQLite(t)

	err := s.UpdateValidation(context.Background(), "no-such-id", model.Record{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLiteUnresolvedRefs(t *testing.T) {
	t.Parallel()
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.InsertPassageResult(ctx,
		model.Passage{Book: "Exodus", Chapter: 15, Verse: 8},
		model.Attempt{Tier: 3, Backend: "anthropic/claude"},
		model.UnitOutcome{Ref: "Exodus 15:8", Outcome: model.OutcomeTruncated},
	)
	require.NoError(t, err)
	insertCompletePassage(t, s)

	refs, err := s.UnresolvedRefs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Exodus 15:8"}, refs)
}

func TestSQLiteListResultsFilters(t *testing.T) {
	t.Parallel()
	s := newTestSQLite(t)
	ctx := context.Background()

	insertCompletePassage(t, s)
	_, err := s.InsertPassageResult(ctx,
		model.Passage{Book: "Genesis", Chapter: 1, Verse: 1},
		model.Attempt{Tier: 1, Backend: "gemini/gemini-2.5-flash"},
		model.UnitOutcome{Ref: "Genesis 1:1", Outcome: model.OutcomeEmpty},
	)
	require.NoError(t, err)

	byBook, err := s.ListResults(ctx, ResultFilter{Book: "Genesis"})
	require.NoError(t, err)
	require.Len(t, byBook, 1)
	assert.Equal(t, "Genesis 1:1", byBook[0].Ref)

	byOutcome, err := s.ListResults(ctx, ResultFilter{Outcome: model.OutcomeComplete})
	require.NoError(t, err)
	require.Len(t, byOutcome, 1)
	assert.Equal(t, "Psalms 23:1", byOutcome[0].Ref)

	limited, err := s.ListResults(ctx, ResultFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
