package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/ARobicsek/bible-figurative-language-sub000/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS passages (
	id           TEXT PRIMARY KEY,
	ref          TEXT NOT NULL UNIQUE,
	book         TEXT NOT NULL,
	chapter      INTEGER NOT NULL,
	verse        INTEGER NOT NULL,
	hebrew_text  TEXT,
	english_text TEXT,
	outcome      TEXT NOT NULL,
	tier         INTEGER NOT NULL DEFAULT 0,
	backend      TEXT,
	deliberation TEXT,
	error        TEXT,
	processed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS candidates (
	id               TEXT PRIMARY KEY,
	passage_id       TEXT NOT NULL REFERENCES passages(id),
	correlation_id   INTEGER NOT NULL,
	candidate        JSONB NOT NULL,
	verdicts         JSONB,
	final            JSONB,
	overall_positive BOOLEAN NOT NULL DEFAULT false,
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE(passage_id, correlation_id)
);

CREATE INDEX IF NOT EXISTS idx_passages_book ON passages(book);
CREATE INDEX IF NOT EXISTS idx_passages_outcome ON passages(outcome);
CREATE INDEX IF NOT EXISTS idx_candidates_passage_id ON candidates(passage_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) InsertPassageResult(ctx context.Context, passage model.Passage, attempt model.Attempt, outcome model.UnitOutcome) (string, error) {
	id := uuid.New().String()

	var storedID string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO passages (id, ref, book, chapter, verse, hebrew_text, english_text, outcome, tier, backend, deliberation, error, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (ref) DO UPDATE SET
			outcome = excluded.outcome,
			tier = excluded.tier,
			backend = excluded.backend,
			deliberation = excluded.deliberation,
			error = excluded.error,
			processed_at = excluded.processed_at
		RETURNING id`,
		id, passage.Reference(), passage.Book, passage.Chapter, passage.Verse,
		passage.HebrewText, passage.EnglishText,
		string(outcome.Outcome), attempt.Tier, attempt.Backend, attempt.Deliberation,
		outcome.Error, time.Now().UTC(),
	).Scan(&storedID)
	if err != nil {
		return "", eris.Wrapf(err, "postgres: upsert passage %s", passage.Reference())
	}

	if _, err := s.pool.Exec(ctx, `DELETE FROM candidates WHERE passage_id = $1`, storedID); err != nil {
		return "", eris.Wrapf(err, "postgres: clear candidates %s", passage.Reference())
	}
	return storedID, nil
}

func (s *PostgresStore) InsertCandidate(ctx context.Context, passageID string, c model.Candidate) (string, error) {
	id := uuid.New().String()

	candidateJSON, err := json.Marshal(c)
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal candidate")
	}

	var storedID string
	err = s.pool.QueryRow(ctx, `
		INSERT INTO candidates (id, passage_id, correlation_id, candidate, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (passage_id, correlation_id) DO UPDATE SET
			candidate = excluded.candidate,
			verdicts = NULL,
			final = NULL,
			overall_positive = false,
			updated_at = excluded.updated_at
		RETURNING id`,
		id, passageID, c.CorrelationID, string(candidateJSON), time.Now().UTC(),
	).Scan(&storedID)
	if err != nil {
		return "", eris.Wrapf(err, "postgres: upsert candidate %d", c.CorrelationID)
	}
	return storedID, nil
}

func (s *PostgresStore) UpdateValidation(ctx context.Context, candidateID string, rec model.Record) error {
	verdictsJSON, err := json.Marshal(rec.Verdicts)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal verdicts")
	}
	finalJSON, err := json.Marshal(rec.Final)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal final set")
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE candidates SET verdicts = $1, final = $2, overall_positive = $3, updated_at = $4
		WHERE id = $5`,
		string(verdictsJSON), string(finalJSON), rec.OverallPositive, time.Now().UTC(), candidateID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update validation %s", candidateID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: candidate not found: %s", candidateID)
	}
	return nil
}

func (s *PostgresStore) ListResults(ctx context.Context, filter ResultFilter) ([]PassageResult, error) {
	query := `
		SELECT p.ref, p.book, p.chapter, p.verse, p.outcome, p.tier, COALESCE(p.backend, ''),
			COUNT(c.id), COUNT(c.id) FILTER (WHERE c.overall_positive), COALESCE(p.error, '')
		FROM passages p
		LEFT JOIN candidates c ON c.passage_id = p.id
		WHERE 1=1`
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Book != "" {
		query += ` AND p.book = ` + arg(filter.Book)
	}
	if filter.Outcome != "" {
		query += ` AND p.outcome = ` + arg(string(filter.Outcome))
	}
	query += ` GROUP BY p.id`
	if filter.PositiveOnly {
		query += ` HAVING COUNT(c.id) FILTER (WHERE c.overall_positive) > 0`
	}
	query += ` ORDER BY p.book, p.chapter, p.verse`
	if filter.Limit > 0 {
		query += ` LIMIT ` + arg(filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ` + arg(filter.Offset)
		}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list results")
	}
	defer rows.Close()

	var out []PassageResult
	for rows.Next() {
		var r PassageResult
		if err := rows.Scan(&r.Ref, &r.Book, &r.Chapter, &r.Verse, &r.Outcome, &r.Tier, &r.Backend, &r.Candidates, &r.Positive, &r.Error); err != nil {
			return nil, eris.Wrap(err, "postgres: scan result row")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate results")
}

func (s *PostgresStore) UnresolvedRefs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ref FROM passages WHERE outcome IN ($1, $2) ORDER BY book, chapter, verse`,
		string(model.OutcomeTruncated), string(model.OutcomeFailed),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: unresolved refs")
	}
	defer rows.Close()

	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, eris.Wrap(err, "postgres: scan ref")
		}
		refs = append(refs, ref)
	}
	return refs, eris.Wrap(rows.Err(), "postgres: iterate refs")
}
