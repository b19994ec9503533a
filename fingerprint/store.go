package fingerprint

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/driftlab/drift/dbopen"
	"github.com/driftlab/drift/idgen"
)

// Record is one stored fingerprint version.
type Record struct {
	ID           string `json:"id"`
	PageCategory string `json:"page_category"`
	Version      int    `json:"version"`
	Hash         string `json:"hash"`
	PreviousHash string `json:"previous_hash,omitempty"`
	Summary      string `json:"summary"` // canonical JSON
	Current      bool   `json:"current"`
	CreatedAt    int64  `json:"created_at"`
}

const schema = `
CREATE TABLE IF NOT EXISTS fingerprints (
    id            TEXT PRIMARY KEY,
    page_category TEXT NOT NULL,
    version       INTEGER NOT NULL,
    hash          TEXT NOT NULL,
    previous_hash TEXT NOT NULL DEFAULT '',
    summary       TEXT NOT NULL,
    current       INTEGER NOT NULL DEFAULT 1,
    created_at    INTEGER NOT NULL,
    UNIQUE(page_category, version)
);
CREATE INDEX IF NOT EXISTS idx_fingerprints_current ON fingerprints(page_category, current);
`

// Store persists fingerprint versions in SQLite.
type Store struct {
	db    *sql.DB
	newID idgen.Generator
}

// NewStore creates a store writing to db. Call Init before use.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, newID: idgen.New}
}

// Init creates the fingerprints table if absent.
func (s *Store) Init() error {
	_, err := s.db.Exec(schema)
	return err
}

// Current returns the current fingerprint for a category, nil when none.
func (s *Store) Current(ctx context.Context, pageCategory string) (*Record, error) {
	r := &Record{}
	var current int
	err := s.db.QueryRowContext(ctx, `
		SELECT id, page_category, version, hash, previous_hash, summary, current, created_at
		FROM fingerprints WHERE page_category = ? AND current = 1`, pageCategory).Scan(
		&r.ID, &r.PageCategory, &r.Version, &r.Hash, &r.PreviousHash, &r.Summary, &current, &r.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.Current = current == 1
	return r, nil
}

// History returns all versions for a category, newest first.
func (s *Store) History(ctx context.Context, pageCategory string, limit int) ([]*Record, error) {
	query := `
		SELECT id, page_category, version, hash, previous_hash, summary, current, created_at
		FROM fingerprints WHERE page_category = ?
		ORDER BY version DESC`
	args := []any{pageCategory}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		r := &Record{}
		var current int
		if err := rows.Scan(&r.ID, &r.PageCategory, &r.Version, &r.Hash, &r.PreviousHash,
			&r.Summary, &current, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Current = current == 1
		records = append(records, r)
	}
	return records, rows.Err()
}

// InsertVersion demotes the previous current version and inserts rec as the
// new current one, in a single transaction. rec.Version and rec.PreviousHash
// must already be set by the caller.
func (s *Store) InsertVersion(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = s.newID()
	}
	if rec.CreatedAt == 0 {
		rec.CreatedAt = time.Now().UnixMilli()
	}
	rec.Current = true

	return dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE fingerprints SET current = 0
			WHERE page_category = ? AND current = 1`, rec.PageCategory); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO fingerprints
				(id, page_category, version, hash, previous_hash, summary, current, created_at)
			VALUES (?,?,?,?,?,?,1,?)`,
			rec.ID, rec.PageCategory, rec.Version, rec.Hash, rec.PreviousHash,
			rec.Summary, rec.CreatedAt,
		)
		return err
	})
}
