package selectors

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS locators (
    page_category        TEXT NOT NULL,
    element              TEXT NOT NULL,
    candidates           TEXT NOT NULL,
    origin               TEXT NOT NULL DEFAULT 'manual',
    confidence           REAL NOT NULL DEFAULT 0,
    successes            INTEGER NOT NULL DEFAULT 0,
    failures             INTEGER NOT NULL DEFAULT 0,
    consecutive_failures INTEGER NOT NULL DEFAULT 0,
    last_success         INTEGER NOT NULL DEFAULT 0,
    last_failure         INTEGER NOT NULL DEFAULT 0,
    history              TEXT NOT NULL DEFAULT '[]',
    updated_at           INTEGER NOT NULL,
    PRIMARY KEY (page_category, element)
);
`

// Store is the SQLite persistence layer for locator entries. Writes are
// idempotent upserts keyed by (page_category, element), so concurrent
// sessions resolve conflicts last-writer-wins.
type Store struct {
	db *sql.DB
}

// NewStore creates a store writing to db. Call Init before use.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Init creates the locators table if absent.
func (s *Store) Init() error {
	_, err := s.db.Exec(schema)
	return err
}

// Get returns the entry for (element, pageCategory), nil when absent.
func (s *Store) Get(ctx context.Context, element, pageCategory string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT page_category, element, candidates, origin, confidence,
		       successes, failures, consecutive_failures,
		       last_success, last_failure, history, updated_at
		FROM locators WHERE page_category = ? AND element = ?`, pageCategory, element)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

// Upsert inserts or replaces the entry.
func (s *Store) Upsert(ctx context.Context, e *Entry) error {
	candidates, _ := json.Marshal(e.Candidates)
	history, _ := json.Marshal(e.History)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO locators
			(page_category, element, candidates, origin, confidence,
			 successes, failures, consecutive_failures,
			 last_success, last_failure, history, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(page_category, element) DO UPDATE SET
			candidates = excluded.candidates,
			origin = excluded.origin,
			confidence = excluded.confidence,
			successes = excluded.successes,
			failures = excluded.failures,
			consecutive_failures = excluded.consecutive_failures,
			last_success = excluded.last_success,
			last_failure = excluded.last_failure,
			history = excluded.history,
			updated_at = excluded.updated_at`,
		e.PageCategory, e.Element, string(candidates), e.Origin, e.Confidence,
		e.Successes, e.Failures, e.ConsecutiveFailures,
		e.LastSuccess, e.LastFailure, string(history), e.UpdatedAt,
	)
	return err
}

// ListByCategory returns all entries for a page category.
func (s *Store) ListByCategory(ctx context.Context, pageCategory string) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT page_category, element, candidates, origin, confidence,
		       successes, failures, consecutive_failures,
		       last_success, last_failure, history, updated_at
		FROM locators WHERE page_category = ?
		ORDER BY element`, pageCategory)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM locators`).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	e := &Entry{}
	var candidates, history string
	if err := row.Scan(
		&e.PageCategory, &e.Element, &candidates, &e.Origin, &e.Confidence,
		&e.Successes, &e.Failures, &e.ConsecutiveFailures,
		&e.LastSuccess, &e.LastFailure, &history, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	json.Unmarshal([]byte(candidates), &e.Candidates)
	json.Unmarshal([]byte(history), &e.History)
	return e, nil
}
