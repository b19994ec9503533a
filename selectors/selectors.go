// Package selectors is the locator registry and health monitor.
//
// For every (page category, element name) pair it keeps an ordered list of
// candidate locators — primary first — together with rolling success and
// failure statistics. Locators are retired to the tail rather than deleted,
// so a site reverting a layout change recovers the old locator for free.
//
// The monitor is purely observational: degradation emits an event to
// subscribed listeners (typically the AI discovery trigger) but never
// retries or reorders anything by itself. Reordering only happens through
// UpsertDiscovered, after a discovered locator has proven itself.
//
// Durable state lives in SQLite behind a read-through/write-through cache;
// with a nil store the registry runs cache-only for the session.
package selectors

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Health status classification thresholds. Classification needs at least
// MinSamples attempts before any non-healthy status fires, so cold starts
// do not page anyone.
const (
	MinSamples = 5

	CriticalRate        = 0.5
	CriticalConsecutive = 5

	DegradedRate        = 0.7
	DegradedConsecutive = 3

	// historySize bounds the per-entry outcome ring buffer.
	historySize = 20
)

// Health statuses.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
	StatusCritical = "critical"
)

// Locator origins.
const (
	OriginManual     = "manual"
	OriginDiscovered = "ai-discovered"
)

// Entry is the stored state for one (page category, element) pair.
type Entry struct {
	PageCategory        string   `json:"page_category"`
	Element             string   `json:"element"`
	Candidates          []string `json:"candidates"` // primary at index 0
	Origin              string   `json:"origin"`
	Confidence          float64  `json:"confidence"`
	Successes           int      `json:"successes"`
	Failures            int      `json:"failures"`
	ConsecutiveFailures int      `json:"consecutive_failures"`
	LastSuccess         int64    `json:"last_success,omitempty"` // unix millis
	LastFailure         int64    `json:"last_failure,omitempty"`
	History             []bool   `json:"history"` // last outcomes, newest last
	UpdatedAt           int64    `json:"updated_at"`
}

// HealthSnapshot is the derived health view of an entry.
type HealthSnapshot struct {
	SuccessRate         float64 `json:"success_rate"`
	RecentRate          float64 `json:"recent_rate"`
	ConsecutiveFailures int     `json:"consecutive_failures"`
	Samples             int     `json:"samples"`
	Status              string  `json:"status"`
}

// HealthEvent is emitted when an entry's status leaves healthy or worsens.
type HealthEvent struct {
	PageCategory string         `json:"page_category"`
	Element      string         `json:"element"`
	Snapshot     HealthSnapshot `json:"snapshot"`
}

// Registry stores locator entries and tracks their health. It is safe for
// concurrent use: one registry is shared by every extraction session in the
// process, so each read-modify-write of an entry happens under mu.
type Registry struct {
	store  *Store
	logger *slog.Logger

	mu         sync.Mutex
	cache      map[string]*Entry
	lastStatus map[string]string
	listeners  []func(HealthEvent)
}

// New creates a Registry. store may be nil, in which case the registry is
// cache-only (degraded, registry-less mode).
func New(store *Store, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		store:      store,
		logger:     logger,
		cache:      make(map[string]*Entry),
		lastStatus: make(map[string]string),
	}
}

// Subscribe registers a listener for health degradation events.
func (r *Registry) Subscribe(fn func(HealthEvent)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// ResolveCandidates returns the stored candidate list, primary first. An
// unknown element returns nil; callers treat that identically to "all
// candidates exhausted" and proceed to discovery.
func (r *Registry) ResolveCandidates(ctx context.Context, element, pageCategory string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.getLocked(ctx, element, pageCategory)
	if e == nil {
		return nil
	}
	out := make([]string, len(e.Candidates))
	copy(out, e.Candidates)
	return out
}

// RecordAttempt records one resolution attempt. A success resets the
// consecutive-failure counter. Entries are created on first successful
// resolution; a failure against an unknown element is dropped.
func (r *Registry) RecordAttempt(ctx context.Context, element, pageCategory string, success bool, usedLocator string) {
	now := time.Now().UnixMilli()

	r.mu.Lock()
	e := r.getLocked(ctx, element, pageCategory)
	if e == nil {
		if !success || usedLocator == "" {
			r.mu.Unlock()
			return
		}
		e = &Entry{
			PageCategory: pageCategory,
			Element:      element,
			Candidates:   []string{usedLocator},
			Origin:       OriginManual,
		}
	}

	if success {
		e.Successes++
		e.ConsecutiveFailures = 0
		e.LastSuccess = now
	} else {
		e.Failures++
		e.ConsecutiveFailures++
		e.LastFailure = now
	}
	e.History = append(e.History, success)
	if len(e.History) > historySize {
		e.History = e.History[len(e.History)-historySize:]
	}
	e.UpdatedAt = now

	r.putLocked(ctx, e)
	snap := classify(e)
	r.mu.Unlock()

	r.reportHealth(pageCategory, element, snap)
}

// Health returns the derived health snapshot for an entry. Unknown entries
// report healthy with zero samples.
func (r *Registry) Health(ctx context.Context, element, pageCategory string) HealthSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.getLocked(ctx, element, pageCategory)
	if e == nil {
		return HealthSnapshot{Status: StatusHealthy}
	}
	return classify(e)
}

// UpsertDiscovered installs a discovered locator as the new primary.
// Previous candidates are retired to the tail of the list, never removed.
func (r *Registry) UpsertDiscovered(ctx context.Context, element, pageCategory, primary string, fallbacks []string, confidence float64) {
	now := time.Now().UnixMilli()

	r.mu.Lock()
	e := r.getLocked(ctx, element, pageCategory)
	if e == nil {
		e = &Entry{PageCategory: pageCategory, Element: element}
	}

	candidates := append([]string{primary}, fallbacks...)
	for _, old := range e.Candidates {
		if !contains(candidates, old) {
			candidates = append(candidates, old)
		}
	}
	e.Candidates = candidates
	e.Origin = OriginDiscovered
	e.Confidence = confidence
	e.ConsecutiveFailures = 0
	e.UpdatedAt = now

	r.putLocked(ctx, e)
	r.mu.Unlock()

	r.logger.Info("selectors: discovered locator installed",
		"page_category", pageCategory, "element", element,
		"primary", primary, "confidence", confidence)
}

// SeedManual registers a manually curated candidate list if the entry does
// not exist yet. Existing entries are left untouched so seeding at startup
// never clobbers learned state.
func (r *Registry) SeedManual(ctx context.Context, element, pageCategory string, candidates []string) {
	if len(candidates) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getLocked(ctx, element, pageCategory) != nil {
		return
	}
	e := &Entry{
		PageCategory: pageCategory,
		Element:      element,
		Candidates:   candidates,
		Origin:       OriginManual,
		UpdatedAt:    time.Now().UnixMilli(),
	}
	r.putLocked(ctx, e)
}

// Entries returns all entries for a page category (admin, stats).
func (r *Registry) Entries(ctx context.Context, pageCategory string) []*Entry {
	if r.store != nil {
		entries, err := r.store.ListByCategory(ctx, pageCategory)
		if err == nil {
			return entries
		}
		r.logger.Warn("selectors: store list failed, serving cache", "error", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Entry
	for _, e := range r.cache {
		if e.PageCategory == pageCategory {
			c := *e
			c.Candidates = append([]string(nil), e.Candidates...)
			c.History = append([]bool(nil), e.History...)
			out = append(out, &c)
		}
	}
	return out
}

func classify(e *Entry) HealthSnapshot {
	samples := e.Successes + e.Failures
	snap := HealthSnapshot{
		ConsecutiveFailures: e.ConsecutiveFailures,
		Samples:             samples,
		Status:              StatusHealthy,
	}
	if samples > 0 {
		snap.SuccessRate = float64(e.Successes) / float64(samples)
	}
	recent := 0
	for _, ok := range e.History {
		if ok {
			recent++
		}
	}
	if len(e.History) > 0 {
		snap.RecentRate = float64(recent) / float64(len(e.History))
	}

	if samples < MinSamples {
		return snap
	}
	switch {
	case snap.SuccessRate < CriticalRate || e.ConsecutiveFailures >= CriticalConsecutive:
		snap.Status = StatusCritical
	case snap.SuccessRate < DegradedRate || e.ConsecutiveFailures >= DegradedConsecutive:
		snap.Status = StatusDegraded
	}
	return snap
}

// reportHealth emits an event when an entry's status transitions away from
// healthy or worsens. Repeated attempts at the same status stay quiet. The
// snapshot is classified by the caller while it still holds mu; listeners
// fire outside the lock so they may call back into the registry.
func (r *Registry) reportHealth(pageCategory, element string, snap HealthSnapshot) {
	key := pageCategory + "/" + element

	r.mu.Lock()
	prev := r.lastStatus[key]
	r.lastStatus[key] = snap.Status
	listeners := make([]func(HealthEvent), len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.Unlock()

	if snap.Status == StatusHealthy || snap.Status == prev {
		return
	}

	r.logger.Warn("selectors: locator health degraded",
		"page_category", pageCategory, "element", element,
		"status", snap.Status, "success_rate", snap.SuccessRate,
		"consecutive_failures", snap.ConsecutiveFailures)

	event := HealthEvent{PageCategory: pageCategory, Element: element, Snapshot: snap}
	for _, fn := range listeners {
		fn(event)
	}
}

// getLocked reads through the cache to the store. Callers hold mu.
func (r *Registry) getLocked(ctx context.Context, element, pageCategory string) *Entry {
	key := pageCategory + "/" + element
	if cached, ok := r.cache[key]; ok {
		return cached
	}
	if r.store == nil {
		return nil
	}

	e, err := r.store.Get(ctx, element, pageCategory)
	if err != nil {
		r.logger.Warn("selectors: store read failed, cache only",
			"page_category", pageCategory, "element", element, "error", err)
		return nil
	}
	if e != nil {
		r.cache[key] = e
	}
	return e
}

// putLocked writes through the cache to the store. Callers hold mu.
func (r *Registry) putLocked(ctx context.Context, e *Entry) {
	r.cache[e.PageCategory+"/"+e.Element] = e

	if r.store == nil {
		return
	}
	if err := r.store.Upsert(ctx, e); err != nil {
		r.logger.Warn("selectors: store write failed, kept in cache",
			"page_category", e.PageCategory, "element", e.Element, "error", err)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
