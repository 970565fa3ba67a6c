package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/ARobicsek/bible-figurative-language-sub000/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
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
	processed_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS candidates (
	id               TEXT PRIMARY KEY,
	passage_id       TEXT NOT NULL REFERENCES passages(id),
	correlation_id   INTEGER NOT NULL,
	candidate        TEXT NOT NULL,
	verdicts         TEXT,
	final            TEXT,
	overall_positive INTEGER NOT NULL DEFAULT 0,
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE(passage_id, correlation_id)
);

CREATE INDEX IF NOT EXISTS idx_passages_book ON passages(book);
CREATE INDEX IF NOT EXISTS idx_passages_outcome ON passages(outcome);
CREATE INDEX IF NOT EXISTS idx_candidates_passage_id ON candidates(passage_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertPassageResult(ctx context.Context, passage model.Passage, attempt model.Attempt, outcome model.UnitOutcome) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	// Reprocessing a passage replaces the terminal attempt and clears
	// candidates from the previous run; fresh ones are inserted after.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO passages (id, ref, book, chapter, verse, hebrew_text, english_text, outcome, tier, backend, deliberation, error, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ref) DO UPDATE SET
			outcome = excluded.outcome,
			tier = excluded.tier,
			backend = excluded.backend,
			deliberation = excluded.deliberation,
			error = excluded.error,
			processed_at = excluded.processed_at`,
		id, passage.Reference(), passage.Book, passage.Chapter, passage.Verse,
		passage.HebrewText, passage.EnglishText,
		string(outcome.Outcome), attempt.Tier, attempt.Backend, attempt.Deliberation,
		outcome.Error, now,
	)
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: upsert passage %s", passage.Reference())
	}

	// The upsert keeps the original row id on conflict; read it back.
	var storedID string
	err = s.db.QueryRowContext(ctx, `SELECT id FROM passages WHERE ref = ?`, passage.Reference()).Scan(&storedID)
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: read passage id %s", passage.Reference())
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM candidates WHERE passage_id = ?`, storedID); err != nil {
		return "", eris.Wrapf(err, "sqlite: clear candidates %s", passage.Reference())
	}

	return storedID, nil
}

func (s *SQLiteStore) InsertCandidate(ctx context.Context, passageID string, c model.Candidate) (string, error) {
	id := uuid.New().String()

	candidateJSON, err := json.Marshal(c)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal candidate")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO candidates (id, passage_id, correlation_id, candidate, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(passage_id, correlation_id) DO UPDATE SET
			candidate = excluded.candidate,
			verdicts = NULL,
			final = NULL,
			overall_positive = 0,
			updated_at = excluded.updated_at`,
		id, passageID, c.CorrelationID, string(candidateJSON), time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: upsert candidate %d", c.CorrelationID)
	}

	var storedID string
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM candidates WHERE passage_id = ? AND correlation_id = ?`,
		passageID, c.CorrelationID,
	).Scan(&storedID)
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: read candidate id %d", c.CorrelationID)
	}
	return storedID, nil
}

func (s *SQLiteStore) UpdateValidation(ctx context.Context, candidateID string, rec model.Record) error {
	verdictsJSON, err := json.Marshal(rec.Verdicts)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal verdicts")
	}
	finalJSON, err := json.Marshal(rec.Final)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal final set")
	}

	positive := 0
	if rec.OverallPositive {
		positive = 1
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE candidates SET verdicts = ?, final = ?, overall_positive = ?, updated_at = ?
		WHERE id = ?`,
		string(verdictsJSON), string(finalJSON), positive, time.Now().UTC(), candidateID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update validation %s", candidateID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: candidate not found: %s", candidateID)
	}
	return nil
}

func (s *SQLiteStore) ListResults(ctx context.Context, filter ResultFilter) ([]PassageResult, error) {
	query := `
		SELECT p.ref, p.book, p.chapter, p.verse, p.outcome, p.tier, p.backend,
			COUNT(c.id), COALESCE(SUM(c.overall_positive), 0), COALESCE(p.error, '')
		FROM passages p
		LEFT JOIN candidates c ON c.passage_id = p.id
		WHERE 1=1`
	args := []any{}

	if filter.Book != "" {
		query += ` AND p.book = ?`
		args = append(args, filter.Book)
	}
	if filter.Outcome != "" {
		query += ` AND p.outcome = ?`
		args = append(args, string(filter.Outcome))
	}
	query += ` GROUP BY p.id`
	if filter.PositiveOnly {
		query += ` HAVING COALESCE(SUM(c.overall_positive), 0) > 0`
	}
	query += ` ORDER BY p.book, p.chapter, p.verse`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list results")
	}
	defer rows.Close()

	var out []PassageResult
	for rows.Next() {
		var r PassageResult
		var backend sql.NullString
		if err := rows.Scan(&r.Ref, &r.Book, &r.Chapter, &r.Verse, &r.Outcome, &r.Tier, &backend, &r.Candidates, &r.Positive, &r.Error); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan result row")
		}
		r.Backend = backend.String
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate results")
}

func (s *SQLiteStore) UnresolvedRefs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ref FROM passages WHERE outcome IN (?, ?) ORDER BY book, chapter, verse`,
		string(model.OutcomeTruncated), string(model.OutcomeFailed),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: unresolved refs")
	}
	defer rows.Close()

	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan ref")
		}
		refs = append(refs, ref)
	}
	return refs, eris.Wrap(rows.Err(), "sqlite: iterate refs")
}
