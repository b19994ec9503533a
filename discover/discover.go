// Package discover asks the remote language model for replacement locators
// when every known candidate for an element has failed.
//
// One call, one model request: retries are the caller's decision. Every
// returned selector passes a genericity filter before it may touch the
// registry — an over-broad locator that clicks the wrong element is a
// correctness bug worse than a missed extraction. Every attempt, accepted
// or rejected, lands in the audit log.
package discover

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/driftlab/drift/audit"
	"github.com/driftlab/drift/browser"
	"github.com/driftlab/drift/llm"
	"github.com/driftlab/drift/selectors"
)

// Rejection reasons reported in Result.RejectedReason.
const (
	ReasonModelUnavailable = "model_unavailable"
	ReasonModelError       = "model_error"
	ReasonBadResponse      = "bad_response"
	ReasonAllTooGeneric    = "all_too_generic"
	ReasonNoneResolved     = "none_resolved"
)

// Result is the outcome of one discovery attempt.
type Result struct {
	Candidates     []string `json:"candidates"`
	Confidence     float64  `json:"confidence"`
	RejectedReason string   `json:"rejected_reason,omitempty"`
}

// Discoverer runs AI-assisted locator discovery.
type Discoverer struct {
	client   llm.Client
	registry *selectors.Registry
	auditor  *audit.SQLiteLogger
	logger   *slog.Logger
}

// New creates a Discoverer. auditor may be nil only in tests; production
// wiring always supplies one.
func New(client llm.Client, registry *selectors.Registry, auditor *audit.SQLiteLogger, logger *slog.Logger) *Discoverer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discoverer{client: client, registry: registry, auditor: auditor, logger: logger}
}

// modelAnswer is the JSON shape the model is instructed to return.
type modelAnswer struct {
	Candidates []string `json:"candidates"`
	Confidence float64  `json:"confidence"`
	Notes      string   `json:"notes"`
}

// Discover builds a bounded excerpt from the live page, asks the model for
// candidate selectors, filters them, and verifies survivors against the
// page. The first candidate that actually resolves becomes the new primary
// and is persisted through the registry; the rest ride along as fallbacks.
//
// Failures of any kind return a Result with a RejectedReason — discovery
// never propagates an error up the stack.
func (d *Discoverer) Discover(ctx context.Context, page browser.Session, element, pageCategory string) Result {
	if !d.client.Available() {
		return d.finish(ctx, element, pageCategory, "", 0, Result{RejectedReason: ReasonModelUnavailable})
	}

	rawHTML, err := page.HTML(ctx)
	if err != nil {
		d.logger.Warn("discover: page unreadable",
			"page_category", pageCategory, "element", element, "error", err)
		return d.finish(ctx, element, pageCategory, "", 0, Result{RejectedReason: ReasonModelError})
	}
	excerpt := BuildExcerpt(rawHTML)
	prompt := buildPrompt(element, specFor(element), excerpt)

	resp, err := d.client.Complete(ctx, llm.Request{System: discoverySystem, Prompt: prompt})
	if err != nil {
		d.logger.Warn("discover: model call failed",
			"page_category", pageCategory, "element", element, "error", err)
		return d.finish(ctx, element, pageCategory, prompt, len(excerpt), Result{RejectedReason: ReasonModelError})
	}

	var answer modelAnswer
	if err := llm.ParseJSONBlock(resp.Text, &answer); err != nil {
		d.logger.Warn("discover: unparseable model response",
			"page_category", pageCategory, "element", element, "error", err)
		return d.finish(ctx, element, pageCategory, prompt, len(excerpt), Result{RejectedReason: ReasonBadResponse})
	}

	accepted, rejectedSels := FilterCandidates(answer.Candidates)
	if len(accepted) == 0 {
		d.logger.Info("discover: all candidates rejected as generic",
			"page_category", pageCategory, "element", element, "rejected", rejectedSels)
		return d.finish(ctx, element, pageCategory, prompt, len(excerpt), Result{RejectedReason: ReasonAllTooGeneric})
	}

	// Verify survivors against the live page; the first resolver wins.
	var resolved []string
	for _, sel := range accepted {
		if _, err := page.QueryOne(ctx, sel); err == nil {
			resolved = append(resolved, sel)
		}
	}
	if len(resolved) == 0 {
		return d.finish(ctx, element, pageCategory, prompt, len(excerpt),
			Result{Candidates: accepted, Confidence: answer.Confidence, RejectedReason: ReasonNoneResolved})
	}

	d.registry.UpsertDiscovered(ctx, element, pageCategory, resolved[0], resolved[1:], answer.Confidence)

	return d.finish(ctx, element, pageCategory, prompt, len(excerpt),
		Result{Candidates: resolved, Confidence: answer.Confidence})
}

// finish writes the audit entry and returns the result unchanged.
func (d *Discoverer) finish(ctx context.Context, element, pageCategory, prompt string, excerptSize int, res Result) Result {
	if d.auditor == nil {
		return res
	}
	candidates := "[]"
	if len(res.Candidates) > 0 {
		data, _ := json.Marshal(res.Candidates)
		candidates = string(data)
	}
	entry := &audit.Entry{
		Action:       "locator_discovery",
		PageCategory: pageCategory,
		Element:      element,
		Prompt:       prompt,
		ExcerptSize:  excerptSize,
		Candidates:   candidates,
		Error:        res.RejectedReason,
	}
	if err := d.auditor.Log(ctx, entry); err != nil {
		// The trail is a hard requirement; a write failure is loud but
		// must not turn a successful discovery into a failed one.
		d.logger.Error("discover: audit write failed",
			"page_category", pageCategory, "element", element, "error", err)
	}
	return res
}
