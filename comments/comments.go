// Package comments extracts user comments from a content page by running
// independent strategies in priority order: intercepted API payloads first,
// then embedded script data, then rendered markup, then a language model
// as last resort.
//
// Each strategy is unreliable on its own; together they cover the three
// representations the target ships comments in. Results from all strategies
// are merged through a session-scoped content hash so the same comment
// surfacing via two paths is stored once.
package comments

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strings"

	"github.com/driftlab/drift/browser"
	"github.com/driftlab/drift/llm"
)

// Provenance tags record which strategy produced a comment.
const (
	ProvenanceAPI    = "api"
	ProvenanceScript = "script"
	ProvenanceDOM    = "dom"
	ProvenanceAI     = "ai"
)

// Comment is one extracted user comment.
type Comment struct {
	ID         string `json:"id"`
	ContentID  string `json:"content_id"`
	Author     string `json:"author"`
	AuthorID   string `json:"author_id,omitempty"`
	Body       string `json:"body"`
	Timestamp  int64  `json:"timestamp"` // unix millis
	LikeCount  int    `json:"like_count,omitempty"`
	ParentID   string `json:"parent_id,omitempty"` // set on threaded replies
	Provenance string `json:"provenance"`
}

// hashBodyLimit bounds the body prefix fed into ContentHash. Long bodies
// are identical well before this point; truncation keeps the key cheap.
const hashBodyLimit = 120

// ContentHash derives a dedup key from author and body, independent of
// any provider-assigned id. Author case and surrounding whitespace do not
// affect the hash, so the same comment arriving from two strategies with
// two synthesized ids collapses to one key.
func ContentHash(author, body string) string {
	a := strings.ToLower(strings.TrimSpace(author))
	b := normalizeBody(body)
	if len(b) > hashBodyLimit {
		b = b[:hashBodyLimit]
	}
	h := sha256.Sum256([]byte(a + ":" + b))
	return fmt.Sprintf("%x", h[:16])
}

func normalizeBody(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Stage names one extraction strategy.
type Stage string

const (
	StageAPI    Stage = "api"
	StageScript Stage = "script"
	StageDOM    Stage = "dom"
	StageModel  Stage = "model"
)

// DefaultStages is the priority order: cheap and structured first.
var DefaultStages = []Stage{StageAPI, StageScript, StageDOM, StageModel}

// Pipeline runs extraction strategies against a page.
type Pipeline struct {
	client llm.Client
	logger *slog.Logger
}

// NewPipeline creates a Pipeline. client may be a Noop; the model stage
// then yields nothing instead of failing.
func NewPipeline(client llm.Client, logger *slog.Logger) *Pipeline {
	if client == nil {
		client = llm.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{client: client, logger: logger}
}

// Extract runs the default stages in priority order, short-circuiting as
// soon as a stage yields a non-empty result. contentURL is informational;
// the page handle is the source of truth.
func (p *Pipeline) Extract(ctx context.Context, page browser.Session, contentID, contentURL string) []Comment {
	seen := map[string]bool{}
	for _, stage := range DefaultStages {
		got := p.runStage(ctx, stage, page, contentID, seen)
		if len(got) > 0 {
			p.logger.Info("comments: extracted",
				"stage", string(stage), "count", len(got), "content_id", contentID, "url", contentURL)
			return got
		}
	}
	p.logger.Info("comments: no comments found", "content_id", contentID, "url", contentURL)
	return nil
}

// ExtractWith runs the given stages in order without short-circuiting,
// merging their results through one dedup set. Callers use it when the
// short-circuited count falls short of the page's advertised total.
func (p *Pipeline) ExtractWith(ctx context.Context, page browser.Session, contentID, contentURL string, stages []Stage) []Comment {
	seen := map[string]bool{}
	var all []Comment
	for _, stage := range stages {
		got := p.runStage(ctx, stage, page, contentID, seen)
		all = append(all, got...)
	}
	p.logger.Info("comments: merged extraction",
		"stages", len(stages), "count", len(all), "content_id", contentID, "url", contentURL)
	return all
}

func (p *Pipeline) runStage(ctx context.Context, stage Stage, page browser.Session, contentID string, seen map[string]bool) []Comment {
	var got []Comment
	switch stage {
	case StageAPI:
		got = p.extractAPI(page, contentID)
	case StageScript:
		got = p.extractScript(ctx, page, contentID)
	case StageDOM:
		got = p.extractDOM(ctx, page, contentID)
	case StageModel:
		got = p.extractModel(ctx, page, contentID)
	default:
		p.logger.Warn("comments: unknown stage", "stage", string(stage))
	}
	return dedup(got, seen)
}

// dedup drops candidates whose ContentHash is already in seen and records
// the survivors. seen is scoped to one extraction session.
func dedup(candidates []Comment, seen map[string]bool) []Comment {
	var kept []Comment
	for _, c := range candidates {
		key := ContentHash(c.Author, c.Body)
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, c)
	}
	return kept
}
