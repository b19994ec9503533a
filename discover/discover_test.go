package discover

import (
	"context"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/driftlab/drift/audit"
	"github.com/driftlab/drift/browser"
	"github.com/driftlab/drift/dbopen"
	"github.com/driftlab/drift/llm"
	"github.com/driftlab/drift/selectors"
)

type fakeModel struct {
	reply string
	err   error
	calls int
}

func (f *fakeModel) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Text: f.reply}, nil
}

func (f *fakeModel) Available() bool { return true }

const postHTML = `<html><body>
<main><article data-testid="post-article">
  <ul class="comment-list"><li>first comment</li></ul>
  <textarea aria-label="Add a comment"></textarea>
</article></main>
</body></html>`

func testDiscoverer(t *testing.T, model llm.Client) (*Discoverer, *selectors.Registry, *audit.SQLiteLogger) {
	t.Helper()
	db := dbopen.OpenMemory(t)
	store := selectors.NewStore(db)
	if err := store.Init(); err != nil {
		t.Fatal(err)
	}
	registry := selectors.New(store, nil)
	auditor := audit.NewSQLiteLogger(db)
	if err := auditor.Init(); err != nil {
		t.Fatal(err)
	}
	return New(model, registry, auditor, nil), registry, auditor
}

func TestDiscover_Success(t *testing.T) {
	model := &fakeModel{reply: `{"candidates": ["textarea[aria-label=\"Add a comment\"]", ".comment-list"], "confidence": 0.85}`}
	d, registry, _ := testDiscoverer(t, model)
	page := &browser.Snapshot{URL: "https://example.com/p/1", Document: postHTML}

	res := d.Discover(context.Background(), page, "comment_input", "post_page")
	if res.RejectedReason != "" {
		t.Fatalf("rejected: %q", res.RejectedReason)
	}
	if len(res.Candidates) != 2 {
		t.Fatalf("candidates = %v", res.Candidates)
	}
	if model.calls != 1 {
		t.Fatalf("model calls = %d, want exactly 1 (no retries)", model.calls)
	}

	// Persisted as the new primary.
	got := registry.ResolveCandidates(context.Background(), "comment_input", "post_page")
	if len(got) == 0 || got[0] != `textarea[aria-label="Add a comment"]` {
		t.Fatalf("registry candidates = %v", got)
	}
}

func TestDiscover_AllTooGeneric(t *testing.T) {
	model := &fakeModel{reply: `{"candidates": ["[role=\"button\"]", "div", "*"], "confidence": 0.4}`}
	d, registry, _ := testDiscoverer(t, model)
	page := &browser.Snapshot{Document: postHTML}

	res := d.Discover(context.Background(), page, "like_button", "post_page")
	if res.RejectedReason != ReasonAllTooGeneric {
		t.Fatalf("reason = %q, want all_too_generic", res.RejectedReason)
	}
	if len(res.Candidates) != 0 {
		t.Fatalf("candidates = %v, want none", res.Candidates)
	}
	if got := registry.ResolveCandidates(context.Background(), "like_button", "post_page"); got != nil {
		t.Fatalf("registry polluted: %v", got)
	}
}

func TestDiscover_NoneResolved(t *testing.T) {
	model := &fakeModel{reply: `{"candidates": ["[data-testid=\"does-not-exist\"]"], "confidence": 0.7}`}
	d, registry, _ := testDiscoverer(t, model)
	page := &browser.Snapshot{Document: postHTML}

	res := d.Discover(context.Background(), page, "comment_input", "post_page")
	if res.RejectedReason != ReasonNoneResolved {
		t.Fatalf("reason = %q, want none_resolved", res.RejectedReason)
	}
	if got := registry.ResolveCandidates(context.Background(), "comment_input", "post_page"); got != nil {
		t.Fatalf("unresolved candidates persisted: %v", got)
	}
}

func TestDiscover_ModelUnavailable(t *testing.T) {
	d, _, _ := testDiscoverer(t, llm.Noop{})
	page := &browser.Snapshot{Document: postHTML}

	res := d.Discover(context.Background(), page, "comment_input", "post_page")
	if res.RejectedReason != ReasonModelUnavailable {
		t.Fatalf("reason = %q", res.RejectedReason)
	}
}

func TestDiscover_AuditTrail(t *testing.T) {
	model := &fakeModel{reply: `{"candidates": ["div"], "confidence": 0.2}`}
	db := dbopen.OpenMemory(t)
	store := selectors.NewStore(db)
	store.Init()
	auditor := audit.NewSQLiteLogger(db)
	auditor.Init()
	d := New(model, selectors.New(store, nil), auditor, nil)
	page := &browser.Snapshot{Document: postHTML}

	d.Discover(context.Background(), page, "like_button", "post_page")

	var count int
	var errField string
	db.QueryRow(`SELECT COUNT(*) FROM audit_log`).Scan(&count)
	db.QueryRow(`SELECT error FROM audit_log LIMIT 1`).Scan(&errField)
	if count != 1 {
		t.Fatalf("audit rows = %d, want 1", count)
	}
	if errField != ReasonAllTooGeneric {
		t.Fatalf("audit error = %q", errField)
	}
}

func TestIsTooGeneric(t *testing.T) {
	generic := []string{
		"div", "button", "span", "*",
		`[role="button"]`, `[tabindex="0"]`, `div[role="button"]`,
		"ul > li", "form input", `button[type="submit"]`,
	}
	for _, s := range generic {
		if !IsTooGeneric(s) {
			t.Errorf("IsTooGeneric(%q) = false, want true", s)
		}
	}

	specific := []string{
		`[data-testid="like"]`,
		`textarea[aria-label="Add a comment"]`,
		`input[name="username"]`,
		`#react-root form`,
		".comment-list li",
		`input[placeholder="Search"]`,
	}
	for _, s := range specific {
		if IsTooGeneric(s) {
			t.Errorf("IsTooGeneric(%q) = true, want false", s)
		}
	}
}

func TestBuildExcerpt_StripsAndCaps(t *testing.T) {
	raw := `<html><body><script>alert(1)</script>
		<div data-testid="keep" onclick="evil()">text</div>` +
		strings.Repeat("<p>filler</p>", 2000) + `</body></html>`
	excerpt := BuildExcerpt(raw)
	if strings.Contains(excerpt, "alert(1)") {
		t.Error("script content survived sanitisation")
	}
	if strings.Contains(excerpt, "onclick") {
		t.Error("event handler survived sanitisation")
	}
	if !strings.Contains(excerpt, `data-testid="keep"`) {
		t.Error("structural attribute was stripped")
	}
	if len(excerpt) > maxExcerptBytes {
		t.Errorf("excerpt length %d exceeds cap", len(excerpt))
	}
}
