package comments

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/driftlab/drift/browser"
	"github.com/driftlab/drift/llm"
)

func TestContentHash_Normalization(t *testing.T) {
	base := ContentHash("alice", "nice shot")
	if base != ContentHash("alice", "nice shot") {
		t.Fatal("hash not deterministic")
	}
	same := []struct{ author, body string }{
		{"Alice", "nice shot"},
		{"ALICE", "nice shot"},
		{" alice ", "nice shot"},
		{"alice", "  nice   shot  "},
		{"alice", "nice shot\n"},
	}
	for _, tc := range same {
		if got := ContentHash(tc.author, tc.body); got != base {
			t.Errorf("ContentHash(%q, %q) = %s, want %s", tc.author, tc.body, got, base)
		}
	}
	if ContentHash("bob", "nice shot") == base {
		t.Error("different author must hash differently")
	}
	if ContentHash("alice", "nice shots") == base {
		t.Error("different body must hash differently")
	}
}

const apiPayload = `{
  "comments": [
    {"pk": 101, "text": "first!", "created_at": 1700000000,
     "user": {"pk": 9, "username": "alice"}, "comment_like_count": 3,
     "preview_child_comments": [
       {"pk": 102, "text": "welcome", "user": {"username": "bob"}}
     ]},
    {"pk": 103, "text": "Report", "user": {"username": null}},
    {"id": "menu-item-4", "text": "great post", "user": {"username": "carol"}}
  ]
}`

func TestExtract_APIPayloads(t *testing.T) {
	p := NewPipeline(llm.Noop{}, nil)
	page := &browser.Snapshot{
		URL:          "https://example.com/p/42",
		Document:     "<html><body></body></html>",
		JSONPayloads: []string{apiPayload, "not json at all"},
	}

	got := p.Extract(context.Background(), page, "42", page.URL)
	if len(got) != 2 {
		t.Fatalf("comments = %d, want 2: %+v", len(got), got)
	}

	byAuthor := map[string]Comment{}
	for _, c := range got {
		byAuthor[c.Author] = c
		if c.Provenance != ProvenanceAPI {
			t.Errorf("provenance = %q, want api", c.Provenance)
		}
		if c.ContentID != "42" {
			t.Errorf("content id = %q", c.ContentID)
		}
	}
	top := byAuthor["alice"]
	if top.ID != "101" || top.LikeCount != 3 || top.Timestamp != 1700000000000 {
		t.Errorf("top comment = %+v", top)
	}
	reply := byAuthor["bob"]
	if reply.ParentID != "101" {
		t.Errorf("reply parent = %q, want 101", reply.ParentID)
	}
	if _, ok := byAuthor["carol"]; ok {
		t.Error("menu-item id should have been filtered as chrome")
	}
}

func TestWalkPayload_DepthBound(t *testing.T) {
	comment := `{"pk": 1, "text": "deep", "user": {"username": "alice"}}`
	shallow := strings.Repeat(`{"a":`, 5) + comment + strings.Repeat("}", 5)
	deep := strings.Repeat(`{"a":`, maxWalkDepth+1) + comment + strings.Repeat("}", maxWalkDepth+1)

	if got := walkPayload(shallow, "x", ProvenanceAPI); len(got) != 1 {
		t.Fatalf("shallow nesting: got %d comments, want 1", len(got))
	}
	if got := walkPayload(deep, "x", ProvenanceAPI); len(got) != 0 {
		t.Fatalf("beyond depth cap: got %d comments, want 0", len(got))
	}
}

func TestExtract_CrossStrategyDedup(t *testing.T) {
	// The same comment arrives via API (author lowercase) and DOM (author
	// uppercase). One extraction session must keep exactly one copy.
	apiOnly := `{"comments": [{"pk": 1, "text": "hi", "user": {"username": "a"}}]}`
	page := &browser.Snapshot{
		URL: "https://example.com/p/7",
		Document: `<html><body><ul><li>
			<a href="/A/">A</a><span>hi</span>
		</li></ul></body></html>`,
		JSONPayloads: []string{apiOnly},
	}

	p := NewPipeline(llm.Noop{}, nil)
	got := p.ExtractWith(context.Background(), page, "7", page.URL,
		[]Stage{StageAPI, StageDOM})
	if len(got) != 1 {
		t.Fatalf("comments = %d, want 1 after dedup: %+v", len(got), got)
	}
	if got[0].Provenance != ProvenanceAPI {
		t.Errorf("kept copy should come from the earlier stage, got %q", got[0].Provenance)
	}
}

func TestExtract_ScriptStage(t *testing.T) {
	blob := `{"comments": [{"pk": 5, "text": "inlined", "user": {"username": "dan"}}]}`
	page := &browser.Snapshot{
		Document: `<html><body>
			<script type="application/json">` + blob + `</script>
		</body></html>`,
	}
	p := NewPipeline(llm.Noop{}, nil)
	got := p.Extract(context.Background(), page, "9", "")
	if len(got) != 1 || got[0].Provenance != ProvenanceScript {
		t.Fatalf("got %+v", got)
	}
	if got[0].Author != "dan" || got[0].Body != "inlined" {
		t.Fatalf("got %+v", got[0])
	}
}

func TestExtract_InlineAssignedScript(t *testing.T) {
	blob := `{"data": {"comments": [{"pk": 6, "text": "boot", "user": {"username": "eve"}}]}}`
	page := &browser.Snapshot{
		Document: `<html><body>
			<script>window._bootstrap = ` + blob + `;</script>
		</body></html>`,
	}
	p := NewPipeline(llm.Noop{}, nil)
	got := p.Extract(context.Background(), page, "9", "")
	if len(got) != 1 || got[0].Author != "eve" {
		t.Fatalf("got %+v", got)
	}
}

func TestExtract_DOMStage(t *testing.T) {
	page := &browser.Snapshot{
		Document: `<html><body><div class="comments">
			<ul>
				<li><a href="/alice/">alice</a><span>love this</span></li>
				<li><a href="/bob/">bob</a><span>Report</span></li>
				<li><span>no link here</span></li>
			</ul>
		</div></body></html>`,
	}
	p := NewPipeline(llm.Noop{}, nil)
	got := p.Extract(context.Background(), page, "3", "")
	if len(got) != 1 {
		t.Fatalf("comments = %d, want 1: %+v", len(got), got)
	}
	c := got[0]
	if c.Author != "alice" || c.Body != "love this" || c.Provenance != ProvenanceDOM {
		t.Fatalf("got %+v", c)
	}
	if c.ID == "" {
		t.Error("dom comments need a synthesized id")
	}
}

type fakeModel struct{ reply string }

func (f fakeModel) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	return &llm.Response{Text: f.reply}, nil
}
func (f fakeModel) Available() bool { return true }

func TestExtract_ModelStageLastResort(t *testing.T) {
	answer, _ := json.Marshal(map[string]any{
		"comments": []map[string]string{
			{"username": "@frank", "text": "model found me"},
			{"username": "", "text": "dropped"},
		},
	})
	page := &browser.Snapshot{Document: "<html><body><p>unparseable layout</p></body></html>"}
	p := NewPipeline(fakeModel{reply: string(answer)}, nil)

	got := p.Extract(context.Background(), page, "5", "")
	if len(got) != 1 {
		t.Fatalf("comments = %d, want 1: %+v", len(got), got)
	}
	if got[0].Author != "frank" || got[0].Provenance != ProvenanceAI {
		t.Fatalf("got %+v", got[0])
	}
}

func TestExtract_ShortCircuit(t *testing.T) {
	// API yields a result, so the DOM stage's different comment must not run.
	apiOnly := `{"comments": [{"pk": 1, "text": "from api", "user": {"username": "a"}}]}`
	page := &browser.Snapshot{
		Document: `<html><body><ul><li>
			<a href="/b/">b</a><span>from dom</span>
		</li></ul></body></html>`,
		JSONPayloads: []string{apiOnly},
	}
	p := NewPipeline(llm.Noop{}, nil)
	got := p.Extract(context.Background(), page, "1", "")
	if len(got) != 1 || got[0].Provenance != ProvenanceAPI {
		t.Fatalf("got %+v", got)
	}
}

func TestExtractTimestamp_Defaults(t *testing.T) {
	now := extractTimestamp(map[string]any{})
	if now <= 0 {
		t.Fatal("missing timestamp must default to now")
	}
	if got := extractTimestamp(map[string]any{"created_at": "garbage"}); got <= 0 {
		t.Fatal("malformed timestamp must default to now")
	}
	if got := extractTimestamp(map[string]any{"created_at": float64(1700000000)}); got != 1700000000000 {
		t.Fatalf("seconds epoch: got %d", got)
	}
	if got := extractTimestamp(map[string]any{"created_at": float64(1700000000000)}); got != 1700000000000 {
		t.Fatalf("millis epoch: got %d", got)
	}
	if got := extractTimestamp(map[string]any{"created_at": "2023-11-14T22:13:20Z"}); got != 1700000000000 {
		t.Fatalf("rfc3339: got %d", got)
	}
}

func TestExpectedTotal(t *testing.T) {
	page := &browser.Snapshot{
		Document: "<html><body></body></html>",
		Text:     "liked by 12 people\nView all 1,234 comments\nAdd a comment",
	}
	if got := ExpectedTotal(context.Background(), page); got != 1234 {
		t.Fatalf("got %d, want 1234", got)
	}
}

func TestExpectedTotal_MetaFallback(t *testing.T) {
	page := &browser.Snapshot{
		Document: `<html><head>
			<meta name="description" content="5,210 likes, 87 comments - someone">
		</head><body></body></html>`,
		Text: "nothing useful here",
	}
	if got := ExpectedTotal(context.Background(), page); got != 87 {
		t.Fatalf("got %d, want 87", got)
	}
}

func TestExpectedTotal_SanityBound(t *testing.T) {
	page := &browser.Snapshot{
		Document: "<html><body></body></html>",
		Text:     "View all 2,500,000 comments",
	}
	if got := ExpectedTotal(context.Background(), page); got != 0 {
		t.Fatalf("implausible total must be rejected, got %d", got)
	}
}
