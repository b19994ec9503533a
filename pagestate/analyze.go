package pagestate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/driftlab/drift/browser"
	"github.com/driftlab/drift/extract"
	"github.com/driftlab/drift/llm"
)

// maxAnalysisText bounds the visible text sent to the model.
const maxAnalysisText = 3000

// Analysis is a best-effort reading of an unclassifiable page. It is
// advisory only: the engine never performs an interactive action on an
// unknown page, the caller decides whether to follow the suggestion.
type Analysis struct {
	Summary         string `json:"summary"`
	SuggestedAction string `json:"suggested_action"`
	Confidence      string `json:"confidence"`
}

// Analyzer interprets Unknown pages through the remote model.
type Analyzer struct {
	client llm.Client
	logger *slog.Logger
}

// NewAnalyzer creates an Analyzer. With a Noop client every call returns
// (nil, nil) and the caller proceeds without a suggestion.
func NewAnalyzer(client llm.Client, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{client: client, logger: logger}
}

const analysisSystem = `You analyze pages from a social media web app that an automated
browser session landed on but could not classify. Summarize what the page is and suggest
one next action. Respond with a JSON object:
{"summary": "...", "suggested_action": "...", "confidence": "low|medium|high"}`

// AnalyzeUnknown summarises the page's visible text and buttons and asks
// the model what the page is. Returns (nil, nil) when no model is
// configured.
func (a *Analyzer) AnalyzeUnknown(ctx context.Context, page browser.Session) (*Analysis, error) {
	if !a.client.Available() {
		return nil, nil
	}

	// Prefer the density-extracted main content; overlays and chrome on
	// an unclassifiable page drown out the part that matters.
	var text string
	if raw, err := page.HTML(ctx); err == nil {
		text = extract.MainText(raw)
	}
	if text == "" {
		var err error
		text, err = page.VisibleText(ctx)
		if err != nil {
			return nil, fmt.Errorf("pagestate: analyze: %w", err)
		}
	}
	if len(text) > maxAnalysisText {
		text = text[:maxAnalysisText]
	}

	var buttons []string
	els, _ := page.QueryAll(ctx, `button, [role="button"], input[type="submit"]`)
	for _, el := range els {
		label, err := el.Text(ctx)
		if err != nil || label == "" {
			continue
		}
		buttons = append(buttons, label)
		if len(buttons) >= 10 {
			break
		}
	}

	prompt := fmt.Sprintf("URL: %s\n\nVisible text:\n%s\n\nButtons: %s",
		page.CurrentURL(), text, strings.Join(buttons, " | "))

	resp, err := a.client.Complete(ctx, llm.Request{System: analysisSystem, Prompt: prompt})
	if err != nil {
		a.logger.Warn("pagestate: page analysis failed", "url", page.CurrentURL(), "error", err)
		return nil, nil
	}

	var analysis Analysis
	if err := llm.ParseJSONBlock(resp.Text, &analysis); err != nil {
		a.logger.Warn("pagestate: unparseable analysis", "error", err)
		return nil, nil
	}
	return &analysis, nil
}
