package audit

import (
	"context"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/driftlab/drift/dbopen"
)

func TestSQLiteLogger_Init(t *testing.T) {
	db := dbopen.OpenMemory(t)
	logger := NewSQLiteLogger(db)
	defer logger.Close()

	if err := logger.Init(); err != nil {
		t.Fatal(err)
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='audit_log'").Scan(&count)
	if count != 1 {
		t.Fatal("audit_log table not created")
	}
}

func TestSQLiteLogger_Log_Sync(t *testing.T) {
	db := dbopen.OpenMemory(t)
	logger := NewSQLiteLogger(db)
	defer logger.Close()
	logger.Init()

	ctx := context.Background()
	entry := &Entry{
		Action:       "locator_discovery",
		PageCategory: "post_page",
		Element:      "comment_input",
		ExcerptSize:  2048,
	}
	if err := logger.Log(ctx, entry); err != nil {
		t.Fatal(err)
	}

	// Verify defaults were filled.
	if entry.EntryID == "" {
		t.Fatal("entry_id not generated")
	}
	if entry.Timestamp == 0 {
		t.Fatal("timestamp not set")
	}
	if entry.Status != "success" {
		t.Fatalf("status: got %q, want 'success'", entry.Status)
	}

	var action string
	db.QueryRow("SELECT action FROM audit_log WHERE entry_id = ?", entry.EntryID).Scan(&action)
	if action != "locator_discovery" {
		t.Fatalf("DB action: got %q", action)
	}
}

func TestSQLiteLogger_LogAsync(t *testing.T) {
	db := dbopen.OpenMemory(t)
	logger := NewSQLiteLogger(db)
	logger.Init()

	entry := &Entry{Action: "async_discovery"}
	logger.LogAsync(entry)

	// Close flushes the buffer.
	logger.Close()

	var count int
	db.QueryRow("SELECT COUNT(*) FROM audit_log WHERE action='async_discovery'").Scan(&count)
	if count != 1 {
		t.Fatalf("async entry count: got %d", count)
	}
}

func TestSQLiteLogger_LogAsync_CloseWaitsForFlush(t *testing.T) {
	db := dbopen.OpenMemory(t)
	logger := NewSQLiteLogger(db)
	logger.Init()

	// Overflow the buffer so a background flush starts, then close
	// immediately. Every entry must be durable once Close returns.
	const n = 70
	for i := 0; i < n; i++ {
		logger.LogAsync(&Entry{Action: "burst_discovery"})
	}
	logger.Close()

	var count int
	db.QueryRow("SELECT COUNT(*) FROM audit_log WHERE action='burst_discovery'").Scan(&count)
	if count != n {
		t.Fatalf("entries after close: got %d, want %d", count, n)
	}
}

func TestSQLiteLogger_FillDefaults_Error(t *testing.T) {
	db := dbopen.OpenMemory(t)
	logger := NewSQLiteLogger(db)
	defer logger.Close()
	logger.Init()

	entry := &Entry{
		Action: "locator_discovery",
		Error:  "all_too_generic",
	}
	logger.Log(context.Background(), entry)

	if entry.Status != "error" {
		t.Fatalf("status for error entry: got %q", entry.Status)
	}
}

func TestSQLiteLogger_WithIDGenerator(t *testing.T) {
	db := dbopen.OpenMemory(t)
	gen := func() string { return "fixed_id" }
	logger := NewSQLiteLogger(db, WithIDGenerator(gen))
	defer logger.Close()
	logger.Init()

	entry := &Entry{Action: "custom_id_test"}
	logger.Log(context.Background(), entry)
	if entry.EntryID != "fixed_id" {
		t.Fatalf("entry_id: got %q, want fixed_id", entry.EntryID)
	}
}
