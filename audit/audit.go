// Package audit persists the discovery audit trail.
//
// Every locator-discovery attempt (successful or not) is recorded with its
// prompt, excerpt size, and outcome. Silent selector drift is the principal
// failure mode of the engine, so the trail is a hard requirement rather than
// optional telemetry.
//
// Usage:
//
//	logger := audit.NewSQLiteLogger(db)
//	logger.Init()
//	defer logger.Close()
//	logger.Log(ctx, &audit.Entry{Action: "locator_discovery", ...})
package audit

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/driftlab/drift/idgen"
)

// Entry is one audit record.
type Entry struct {
	EntryID      string `json:"entry_id"`
	Timestamp    int64  `json:"timestamp"` // unix millis
	Action       string `json:"action"`
	PageCategory string `json:"page_category"`
	Element      string `json:"element"`
	Prompt       string `json:"prompt"`
	ExcerptSize  int    `json:"excerpt_size"`
	Candidates   string `json:"candidates"` // JSON array of accepted locators
	Status       string `json:"status"`     // "success" | "error"
	Error        string `json:"error,omitempty"`
}

const schema = `
CREATE TABLE IF NOT EXISTS audit_log (
    entry_id      TEXT PRIMARY KEY,
    timestamp     INTEGER NOT NULL,
    action        TEXT NOT NULL,
    page_category TEXT NOT NULL DEFAULT '',
    element       TEXT NOT NULL DEFAULT '',
    prompt        TEXT NOT NULL DEFAULT '',
    excerpt_size  INTEGER NOT NULL DEFAULT 0,
    candidates    TEXT NOT NULL DEFAULT '[]',
    status        TEXT NOT NULL DEFAULT 'success',
    error         TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_audit_time ON audit_log(timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_audit_element ON audit_log(page_category, element);
`

// SQLiteLogger writes audit entries to SQLite, synchronously or via a
// buffered background writer.
type SQLiteLogger struct {
	db    *sql.DB
	newID idgen.Generator

	mu      sync.Mutex
	buf     []*Entry
	closed  bool
	flushes sync.WaitGroup
}

// Option customises the logger.
type Option func(*SQLiteLogger)

// WithIDGenerator overrides the entry ID generator.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(l *SQLiteLogger) { l.newID = gen }
}

// NewSQLiteLogger creates a logger writing to db. Call Init before use.
func NewSQLiteLogger(db *sql.DB, opts ...Option) *SQLiteLogger {
	l := &SQLiteLogger{db: db, newID: idgen.New}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Init creates the audit_log table if absent.
func (l *SQLiteLogger) Init() error {
	_, err := l.db.Exec(schema)
	return err
}

// Log writes an entry synchronously, filling defaults in place.
func (l *SQLiteLogger) Log(ctx context.Context, e *Entry) error {
	l.fillDefaults(e)
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO audit_log
			(entry_id, timestamp, action, page_category, element, prompt,
			 excerpt_size, candidates, status, error)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		e.EntryID, e.Timestamp, e.Action, e.PageCategory, e.Element, e.Prompt,
		e.ExcerptSize, e.Candidates, e.Status, e.Error,
	)
	return err
}

// LogAsync buffers an entry for background insertion. Entries are flushed
// by Close; a full buffer triggers an inline flush.
func (l *SQLiteLogger) LogAsync(e *Entry) {
	l.fillDefaults(e)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.buf = append(l.buf, e)
	if len(l.buf) >= 64 {
		buf := l.buf
		l.buf = nil
		l.flushes.Add(1)
		go func() {
			defer l.flushes.Done()
			l.flush(buf)
		}()
	}
}

// Close flushes any buffered entries and waits for background flushes to
// finish, so the caller may close the database afterwards. It does not close
// the database itself.
func (l *SQLiteLogger) Close() error {
	l.mu.Lock()
	buf := l.buf
	l.buf = nil
	l.closed = true
	l.mu.Unlock()
	l.flush(buf)
	l.flushes.Wait()
	return nil
}

func (l *SQLiteLogger) flush(entries []*Entry) {
	for _, e := range entries {
		l.db.Exec(`
			INSERT INTO audit_log
				(entry_id, timestamp, action, page_category, element, prompt,
				 excerpt_size, candidates, status, error)
			VALUES (?,?,?,?,?,?,?,?,?,?)`,
			e.EntryID, e.Timestamp, e.Action, e.PageCategory, e.Element, e.Prompt,
			e.ExcerptSize, e.Candidates, e.Status, e.Error,
		)
	}
}

func (l *SQLiteLogger) fillDefaults(e *Entry) {
	if e.EntryID == "" {
		e.EntryID = l.newID()
	}
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UnixMilli()
	}
	if e.Candidates == "" {
		e.Candidates = "[]"
	}
	if e.Status == "" {
		if e.Error != "" {
			e.Status = "error"
		} else {
			e.Status = "success"
		}
	}
}
