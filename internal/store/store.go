// Package store persists analysis results. Two drivers share one interface:
// SQLite for local runs and Postgres for shared deployments. Writes are
// idempotent by (passage reference, correlation id) so reprocessing a
// passage overwrites its earlier rows instead of duplicating them.
package store

import (
	"context"

	"github.com/ARobicsek/bible-figurative-language-sub000/internal/model"
)

// ResultFilter specifies criteria for listing persisted results.
type ResultFilter struct {
	Book    string        `json:"book,omitempty"`
	Outcome model.Outcome `json:"outcome,omitempty"`
	// PositiveOnly keeps only passages with at least one validated candidate.
	PositiveOnly bool `json:"positive_only,omitempty"`
	Limit        int  `json:"limit,omitempty"`
	Offset       int  `json:"offset,omitempty"`
}

// PassageResult is a persisted per-passage row as read back for reporting.
type PassageResult struct {
	Ref        string        `json:"ref"`
	Book       string        `json:"book"`
	Chapter    int           `json:"chapter"`
	Verse      int           `json:"verse"`
	Outcome    model.Outcome `json:"outcome"`
	Tier       int           `json:"tier"`
	Backend    string        `json:"backend"`
	Candidates int           `json:"candidates"`
	Positive   int           `json:"positive"`
	Error      string        `json:"error,omitempty"`
}

// Store defines the persistence interface for the analysis pipeline.
type Store interface {
	// InsertPassageResult upserts the per-passage row (keyed by reference)
	// and returns the passage's storage id.
	InsertPassageResult(ctx context.Context, passage model.Passage, attempt model.Attempt, outcome model.UnitOutcome) (string, error)

	// InsertCandidate upserts one candidate under a passage, keyed by
	// (passage id, correlation id), and returns the candidate's storage id.
	InsertCandidate(ctx context.Context, passageID string, c model.Candidate) (string, error)

	// UpdateValidation attaches verdicts and the recomputed final category
	// set to a previously inserted candidate.
	UpdateValidation(ctx context.Context, candidateID string, rec model.Record) error

	// ListResults reads back per-passage rows for reporting.
	ListResults(ctx context.Context, filter ResultFilter) ([]PassageResult, error)

	// UnresolvedRefs lists references whose last outcome was truncated or
	// failed, the reprocessing queue.
	UnresolvedRefs(ctx context.Context) ([]string, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
