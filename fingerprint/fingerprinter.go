package fingerprint

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/driftlab/drift/browser"
)

// ChangeEvent is emitted when a page category's structure changes.
type ChangeEvent struct {
	PageCategory string        `json:"page_category"`
	OldHash      string        `json:"old_hash"`
	NewHash      string        `json:"new_hash"`
	Version      int           `json:"version"`
	Diff         []FieldChange `json:"diff"`
}

// Comparison is the result of comparing the live page against the last
// known fingerprint for its category.
type Comparison struct {
	Changed bool          `json:"changed"`
	IsNew   bool          `json:"is_new"`
	Hash    string        `json:"hash"`
	Version int           `json:"version"`
	Diff    []FieldChange `json:"diff,omitempty"`
	Err     error         `json:"-"`
}

// Fingerprinter captures and compares structural fingerprints. With a nil
// store it runs memory-only (degraded mode when the registry database is
// unavailable); with a store the in-memory map acts as a read-through cache.
type Fingerprinter struct {
	store  *Store
	logger *slog.Logger

	mu        sync.Mutex
	cache     map[string]*Record
	listeners []func(ChangeEvent)
}

// New creates a Fingerprinter. store may be nil.
func New(store *Store, logger *slog.Logger) *Fingerprinter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fingerprinter{
		store:  store,
		logger: logger,
		cache:  make(map[string]*Record),
	}
}

// Subscribe registers a listener for structural change events. Listeners
// run synchronously on the comparing goroutine.
func (f *Fingerprinter) Subscribe(fn func(ChangeEvent)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, fn)
}

// Capture returns the structural summary of the current page without
// touching stored versions.
func (f *Fingerprinter) Capture(ctx context.Context, page browser.Session) (*Summary, error) {
	return Capture(ctx, page)
}

// Compare captures the page and compares it against the current stored
// fingerprint for pageCategory. Capture failures are advisory: the result
// reports Changed=false with Err set, never an error return.
//
// Compare is idempotent: an unchanged page creates no new version.
func (f *Fingerprinter) Compare(ctx context.Context, page browser.Session, pageCategory string) Comparison {
	summary, err := Capture(ctx, page)
	if err != nil {
		f.logger.Warn("fingerprint: capture failed, treating as no change",
			"page_category", pageCategory, "error", err)
		return Comparison{Changed: false, Err: err}
	}

	hash := summary.Hash()
	prev := f.current(ctx, pageCategory)

	// First observation for this category.
	if prev == nil {
		rec := &Record{
			PageCategory: pageCategory,
			Version:      1,
			Hash:         hash,
			Summary:      summary.Canonical(),
		}
		f.persist(ctx, rec)
		return Comparison{Changed: false, IsNew: true, Hash: hash, Version: 1}
	}

	if prev.Hash == hash {
		return Comparison{Changed: false, Hash: hash, Version: prev.Version}
	}

	var old Summary
	if err := json.Unmarshal([]byte(prev.Summary), &old); err != nil {
		f.logger.Warn("fingerprint: stored summary unreadable",
			"page_category", pageCategory, "error", err)
	}
	diff := Diff(&old, summary)

	rec := &Record{
		PageCategory: pageCategory,
		Version:      prev.Version + 1,
		Hash:         hash,
		PreviousHash: prev.Hash,
		Summary:      summary.Canonical(),
	}
	f.persist(ctx, rec)

	f.logger.Info("fingerprint: structural change detected",
		"page_category", pageCategory, "version", rec.Version, "changes", len(diff))

	event := ChangeEvent{
		PageCategory: pageCategory,
		OldHash:      prev.Hash,
		NewHash:      hash,
		Version:      rec.Version,
		Diff:         diff,
	}
	f.mu.Lock()
	listeners := make([]func(ChangeEvent), len(f.listeners))
	copy(listeners, f.listeners)
	f.mu.Unlock()
	for _, fn := range listeners {
		fn(event)
	}

	return Comparison{Changed: true, Hash: hash, Version: rec.Version, Diff: diff}
}

func (f *Fingerprinter) current(ctx context.Context, pageCategory string) *Record {
	f.mu.Lock()
	cached, ok := f.cache[pageCategory]
	f.mu.Unlock()
	if ok {
		return cached
	}
	if f.store == nil {
		return nil
	}
	rec, err := f.store.Current(ctx, pageCategory)
	if err != nil {
		f.logger.Warn("fingerprint: store read failed, using cache only",
			"page_category", pageCategory, "error", err)
		return nil
	}
	if rec != nil {
		f.mu.Lock()
		f.cache[pageCategory] = rec
		f.mu.Unlock()
	}
	return rec
}

func (f *Fingerprinter) persist(ctx context.Context, rec *Record) {
	if f.store != nil {
		if err := f.store.InsertVersion(ctx, rec); err != nil {
			f.logger.Warn("fingerprint: store write failed, keeping in memory",
				"page_category", rec.PageCategory, "error", err)
		}
	}
	f.mu.Lock()
	f.cache[rec.PageCategory] = rec
	f.mu.Unlock()
}
