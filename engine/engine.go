// Package engine wires the extraction components into one orchestrator:
// page classification, selector resolution with health tracking,
// structural change detection, AI locator discovery, and the comment
// pipeline, all sharing one SQLite file.
//
// The engine tolerates a missing store: if the database cannot be opened
// it runs registry-less for the session, with locators and fingerprints
// held in memory only.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/driftlab/drift/audit"
	"github.com/driftlab/drift/browser"
	"github.com/driftlab/drift/comments"
	"github.com/driftlab/drift/dbopen"
	"github.com/driftlab/drift/discover"
	"github.com/driftlab/drift/fingerprint"
	"github.com/driftlab/drift/llm"
	"github.com/driftlab/drift/pagestate"
	"github.com/driftlab/drift/selectors"
)

// Engine is the orchestrator. Create one per process; sessions share it.
type Engine struct {
	cfg      *Config
	db       *sql.DB
	client   llm.Client
	registry *selectors.Registry
	prints   *fingerprint.Fingerprinter
	disco    *discover.Discoverer
	pipeline *comments.Pipeline
	analyzer *pagestate.Analyzer
	auditor  *audit.SQLiteLogger
	logger   *slog.Logger

	mu       sync.Mutex
	degraded map[string]bool // (category|element) flagged by the health monitor
}

// New creates an Engine from configuration. A store open failure is
// logged and degrades the engine to cache-only operation, it is not fatal.
func New(cfg *Config, logger *slog.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		cfg:      cfg,
		client:   llm.New(cfg.Model),
		logger:   logger,
		degraded: make(map[string]bool),
	}

	db, err := dbopen.Open(cfg.DBPath, dbopen.WithMkdirAll())
	if err != nil {
		logger.Warn("engine: store unavailable, running cache-only", "path", cfg.DBPath, "error", err)
	} else {
		e.db = db
		if err := e.initStores(); err != nil {
			return nil, err
		}
	}

	var selStore *selectors.Store
	var fpStore *fingerprint.Store
	if e.db != nil {
		selStore = selectors.NewStore(e.db)
		fpStore = fingerprint.NewStore(e.db)
	}
	e.registry = selectors.New(selStore, logger)
	e.prints = fingerprint.New(fpStore, logger)
	e.disco = discover.New(e.client, e.registry, e.auditor, logger)
	e.pipeline = comments.NewPipeline(e.client, logger)
	e.analyzer = pagestate.NewAnalyzer(e.client, logger)

	// The monitor only observes; the engine turns its events into a
	// discovery trigger the next time the flagged element is resolved.
	e.registry.Subscribe(func(ev selectors.HealthEvent) {
		e.mu.Lock()
		e.degraded[ev.PageCategory+"|"+ev.Element] = true
		e.mu.Unlock()
		logger.Warn("engine: selector degraded",
			"page_category", ev.PageCategory, "element", ev.Element, "status", ev.Snapshot.Status)
	})

	e.seed(context.Background())
	return e, nil
}

func (e *Engine) initStores() error {
	if err := selectors.NewStore(e.db).Init(); err != nil {
		return fmt.Errorf("engine: init locator store: %w", err)
	}
	if err := fingerprint.NewStore(e.db).Init(); err != nil {
		return fmt.Errorf("engine: init fingerprint store: %w", err)
	}
	e.auditor = audit.NewSQLiteLogger(e.db)
	if err := e.auditor.Init(); err != nil {
		return fmt.Errorf("engine: init audit log: %w", err)
	}
	return nil
}

func (e *Engine) seed(ctx context.Context) {
	for _, s := range e.cfg.Seeds {
		e.registry.SeedManual(ctx, s.Element, s.PageCategory, s.Candidates)
	}
}

// Close releases the shared store.
func (e *Engine) Close() error {
	if e.auditor != nil {
		e.auditor.Close()
	}
	if e.db != nil {
		return e.db.Close()
	}
	return nil
}

// ClassifyPage classifies the page and, when the state is unknown and a
// model is configured, attaches a best-effort AI analysis. The analysis
// is advisory; the engine never acts on it.
func (e *Engine) ClassifyPage(ctx context.Context, page browser.Session) (pagestate.Classification, *pagestate.Analysis) {
	cls := pagestate.Classify(ctx, page)
	if cls.State != pagestate.Unknown {
		return cls, nil
	}
	analysis, err := e.analyzer.AnalyzeUnknown(ctx, page)
	if err != nil {
		e.logger.Warn("engine: unknown-page analysis failed", "url", page.CurrentURL(), "error", err)
		return cls, nil
	}
	return cls, analysis
}

// ResolveCandidates returns the stored locator candidates, primary first.
func (e *Engine) ResolveCandidates(ctx context.Context, element, pageCategory string) []string {
	return e.registry.ResolveCandidates(ctx, element, pageCategory)
}

// RecordAttempt feeds one resolution outcome into the health monitor.
func (e *Engine) RecordAttempt(ctx context.Context, element, pageCategory string, success bool, usedLocator string) {
	e.registry.RecordAttempt(ctx, element, pageCategory, success, usedLocator)
}

// Health reports the monitor's view of one locator entry.
func (e *Engine) Health(ctx context.Context, element, pageCategory string) selectors.HealthSnapshot {
	return e.registry.Health(ctx, element, pageCategory)
}

// DetectStructuralChange compares the page's structural fingerprint to
// the last recorded one for the category.
func (e *Engine) DetectStructuralChange(ctx context.Context, page browser.Session, pageCategory string) fingerprint.Comparison {
	return e.prints.Compare(ctx, page, pageCategory)
}

// ResolveElement finds one element on the page, walking the candidate
// list in order and recording every attempt. When all candidates fail,
// or none are registered, or the health monitor has flagged the entry,
// AI discovery runs against the live page before giving up.
func (e *Engine) ResolveElement(ctx context.Context, page browser.Session, element, pageCategory string) (browser.Element, string, error) {
	key := pageCategory + "|" + element
	e.mu.Lock()
	flagged := e.degraded[key]
	e.mu.Unlock()

	candidates := e.registry.ResolveCandidates(ctx, element, pageCategory)
	if !flagged {
		if el, loc, err := e.tryCandidates(ctx, page, element, pageCategory, candidates); err == nil {
			return el, loc, nil
		}
	}

	res := e.disco.Discover(ctx, page, element, pageCategory)
	if res.RejectedReason != "" {
		if flagged {
			// Flagged entries get one discovery attempt; fall back to the
			// known candidates when it fails.
			if el, loc, err := e.tryCandidates(ctx, page, element, pageCategory, candidates); err == nil {
				return el, loc, nil
			}
		}
		return nil, "", fmt.Errorf("engine: resolve %s on %s: no locator matched (discovery: %s)",
			element, pageCategory, res.RejectedReason)
	}

	e.mu.Lock()
	delete(e.degraded, key)
	e.mu.Unlock()
	return e.tryCandidates(ctx, page, element, pageCategory, res.Candidates)
}

func (e *Engine) tryCandidates(ctx context.Context, page browser.Session, element, pageCategory string, candidates []string) (browser.Element, string, error) {
	for _, loc := range candidates {
		el, err := page.QueryOne(ctx, loc)
		if err == nil {
			e.registry.RecordAttempt(ctx, element, pageCategory, true, loc)
			return el, loc, nil
		}
		if !errors.Is(err, browser.ErrNoMatch) {
			e.logger.Debug("engine: locator query failed",
				"element", element, "locator", loc, "error", err)
		}
		e.registry.RecordAttempt(ctx, element, pageCategory, false, loc)
	}
	return nil, "", browser.ErrNoMatch
}

// Extraction is the outcome of one ExtractComments call.
type Extraction struct {
	State         pagestate.Classification `json:"state"`
	Structure     fingerprint.Comparison   `json:"structure"`
	Comments      []comments.Comment       `json:"comments"`
	ExpectedTotal int                      `json:"expected_total,omitempty"`
}

// ExtractComments runs the full flow against a content page: classify,
// fingerprint, extract. Pages in a non-content state return the
// classification with no comments so the caller can remediate. When the
// short-circuited extraction falls short of the page's advertised total,
// every strategy runs and the results are merged.
func (e *Engine) ExtractComments(ctx context.Context, page browser.Session, contentID, contentURL string) Extraction {
	out := Extraction{}
	out.State, _ = e.ClassifyPage(ctx, page)
	if out.State.State != pagestate.ContentReady {
		e.logger.Info("engine: page not content-ready, skipping extraction",
			"state", out.State.State, "action", out.State.Action, "url", page.CurrentURL())
		return out
	}

	// Advisory: a structure change does not stop extraction, it retires
	// stale assumptions for the next session.
	out.Structure = e.prints.Compare(ctx, page, "post_page")

	out.Comments = e.pipeline.Extract(ctx, page, contentID, contentURL)
	out.ExpectedTotal = comments.ExpectedTotal(ctx, page)

	if out.ExpectedTotal > 0 && len(out.Comments) < out.ExpectedTotal {
		e.logger.Info("engine: coverage short, merging all strategies",
			"got", len(out.Comments), "expected", out.ExpectedTotal, "content_id", contentID)
		out.Comments = e.pipeline.ExtractWith(ctx, page, contentID, contentURL, comments.DefaultStages)
	}
	return out
}

// Stats summarises the durable state for operators.
type Stats struct {
	Locators    int  `json:"locators"`
	StoreOnline bool `json:"store_online"`
}

func (e *Engine) Stats(ctx context.Context) Stats {
	s := Stats{StoreOnline: e.db != nil}
	if e.db != nil {
		if n, err := selectors.NewStore(e.db).Count(ctx); err == nil {
			s.Locators = n
		}
	}
	return s
}
