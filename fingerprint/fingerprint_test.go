package fingerprint

import (
	"context"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/driftlab/drift/browser"
	"github.com/driftlab/drift/dbopen"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db := dbopen.OpenMemory(t)
	s := NewStore(db)
	if err := s.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	return s
}

func pageWith(html string) *browser.Snapshot {
	return &browser.Snapshot{URL: "https://example.com/", Document: html}
}

const loginHTML = `<html><body>
<form id="loginForm" action="/accounts/login">
  <input type="text" name="username" />
  <input type="password" name="password" />
  <button type="submit">Log in</button>
</form>
</body></html>`

func TestSummaryHash_Deterministic(t *testing.T) {
	a := &Summary{FormCount: 1, InputCount: 2, InputsByType: map[string]int{"text": 1, "password": 1}}
	b := &Summary{FormCount: 1, InputCount: 2, InputsByType: map[string]int{"password": 1, "text": 1}}
	if a.Hash() != b.Hash() {
		t.Fatal("identical summaries must hash identically")
	}

	c := &Summary{FormCount: 1, InputCount: 3, InputsByType: map[string]int{"text": 2, "password": 1}}
	if a.Hash() == c.Hash() {
		t.Fatal("different summaries must hash differently")
	}
}

func TestCapture(t *testing.T) {
	s, err := Capture(context.Background(), pageWith(loginHTML))
	if err != nil {
		t.Fatal(err)
	}
	if s.FormCount != 1 {
		t.Errorf("FormCount = %d, want 1", s.FormCount)
	}
	if s.InputCount != 2 {
		t.Errorf("InputCount = %d, want 2", s.InputCount)
	}
	if s.InputsByType["password"] != 1 {
		t.Errorf("password inputs = %d, want 1", s.InputsByType["password"])
	}
	if s.ButtonCount != 1 {
		t.Errorf("ButtonCount = %d, want 1", s.ButtonCount)
	}
	if !s.Containers["loginForm"] {
		t.Error("loginForm container not detected")
	}
}

func TestDiff_InputCount(t *testing.T) {
	old := &Summary{FormCount: 1, InputCount: 2}
	new := &Summary{FormCount: 1, InputCount: 3}
	diff := Diff(old, new)
	if len(diff) != 1 {
		t.Fatalf("diff = %v, want one entry", diff)
	}
	if diff[0].Field != "inputCount" || diff[0].Old != "2" || diff[0].New != "3" {
		t.Fatalf("diff[0] = %+v", diff[0])
	}
}

func TestCompare_FirstObservation(t *testing.T) {
	f := New(testStore(t), nil)
	cmp := f.Compare(context.Background(), pageWith(loginHTML), "login")
	if cmp.Changed {
		t.Error("first observation must not report changed")
	}
	if !cmp.IsNew {
		t.Error("first observation must report IsNew")
	}
	if cmp.Version != 1 {
		t.Errorf("version = %d, want 1", cmp.Version)
	}
}

func TestCompare_Idempotent(t *testing.T) {
	store := testStore(t)
	f := New(store, nil)
	ctx := context.Background()

	f.Compare(ctx, pageWith(loginHTML), "login")
	cmp := f.Compare(ctx, pageWith(loginHTML), "login")
	if cmp.Changed || cmp.IsNew {
		t.Errorf("repeat compare: %+v, want unchanged", cmp)
	}

	history, err := store.History(ctx, "login", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 {
		t.Fatalf("history length = %d, want 1 (no new version on no change)", len(history))
	}
}

func TestCompare_Change(t *testing.T) {
	store := testStore(t)
	f := New(store, nil)
	ctx := context.Background()

	var events []ChangeEvent
	f.Subscribe(func(e ChangeEvent) { events = append(events, e) })

	f.Compare(ctx, pageWith(loginHTML), "login")

	changed := `<html><body>
	<form id="loginForm" action="/accounts/login">
	  <input type="text" name="username" />
	  <input type="text" name="extra" />
	  <input type="password" name="password" />
	  <button type="submit">Log in</button>
	</form>
	</body></html>`
	cmp := f.Compare(ctx, pageWith(changed), "login")
	if !cmp.Changed {
		t.Fatal("expected changed=true")
	}
	if cmp.Version != 2 {
		t.Errorf("version = %d, want 2", cmp.Version)
	}

	found := false
	for _, ch := range cmp.Diff {
		if ch.Field == "inputCount" {
			found = true
		}
	}
	if !found {
		t.Errorf("diff missing inputCount entry: %v", cmp.Diff)
	}

	if len(events) != 1 {
		t.Fatalf("listener calls = %d, want 1", len(events))
	}
	if events[0].Version != 2 || events[0].OldHash == events[0].NewHash {
		t.Errorf("event = %+v", events[0])
	}

	// Version chain in the store.
	cur, err := store.Current(ctx, "login")
	if err != nil {
		t.Fatal(err)
	}
	if cur.Version != 2 || cur.PreviousHash == "" {
		t.Errorf("current = %+v", cur)
	}
	history, _ := store.History(ctx, "login", 0)
	if len(history) != 2 {
		t.Fatalf("history = %d, want 2", len(history))
	}
	if history[1].Current {
		t.Error("superseded version still marked current")
	}
}

func TestCompare_CaptureError(t *testing.T) {
	f := New(nil, nil)
	cmp := f.Compare(context.Background(), errSession{}, "login")
	if cmp.Changed {
		t.Error("capture error must report changed=false")
	}
	if cmp.Err == nil {
		t.Error("capture error must be surfaced in Err")
	}
}

func TestCompare_MemoryOnly(t *testing.T) {
	f := New(nil, nil)
	ctx := context.Background()

	cmp := f.Compare(ctx, pageWith(loginHTML), "login")
	if !cmp.IsNew {
		t.Fatal("first memory-only observation should be new")
	}
	cmp = f.Compare(ctx, pageWith(loginHTML), "login")
	if cmp.Changed || cmp.IsNew {
		t.Fatalf("memory-only repeat: %+v", cmp)
	}
}

type errSession struct{}

func (errSession) CurrentURL() string { return "" }
func (errSession) HTML(ctx context.Context) (string, error) {
	return "", context.DeadlineExceeded
}
func (errSession) VisibleText(ctx context.Context) (string, error) {
	return "", context.DeadlineExceeded
}
func (errSession) QueryOne(ctx context.Context, locator string) (browser.Element, error) {
	return nil, browser.ErrNoMatch
}
func (errSession) QueryAll(ctx context.Context, locator string) ([]browser.Element, error) {
	return nil, nil
}
func (errSession) Payloads() []string { return nil }
