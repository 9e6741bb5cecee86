package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchmcp/couchmcp"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	entries := []couchmcp.AuditEntry{
		{Time: base, Operation: couchmcp.OpCreateDatabase, Database: "users", Status: "ok"},
		{Time: base.Add(time.Second), Operation: couchmcp.OpCreateDocument, Database: "users", DocID: "u1", Status: "ok"},
		{Time: base.Add(2 * time.Second), Operation: couchmcp.OpUpdateDocument, Database: "users", DocID: "u1",
			Status: "revision_conflict", Detail: "revision_conflict (409): conflict: Document update conflict."},
	}
	for _, e := range entries {
		if err := s.Record(ctx, e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}

	// Newest first.
	if got[0].Operation != couchmcp.OpUpdateDocument || got[2].Operation != couchmcp.OpCreateDatabase {
		t.Errorf("entries not in reverse insertion order: %+v", got)
	}
	if got[0].Status != "revision_conflict" || got[0].Detail == "" {
		t.Errorf("failure entry lost status or detail: %+v", got[0])
	}
	if got[1].Database != "users" || got[1].DocID != "u1" {
		t.Errorf("entry lost identifiers: %+v", got[1])
	}
	if !got[2].Time.Equal(base) {
		t.Errorf("timestamp = %v, want %v", got[2].Time, base)
	}
}

func TestRecentLimit(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		e := couchmcp.AuditEntry{Operation: couchmcp.OpListDatabases, Status: "ok"}
		if err := s.Record(ctx, e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 entries, got %d", len(got))
	}
}

func TestRecordFillsZeroTime(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Record(ctx, couchmcp.AuditEntry{Operation: couchmcp.OpListDatabases, Status: "ok"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	got, err := s.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 || got[0].Time.IsZero() {
		t.Errorf("expected a filled timestamp, got %+v", got)
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "audit.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Record(ctx, couchmcp.AuditEntry{Operation: couchmcp.OpDeleteDatabase, Database: "old", Status: "ok"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 || got[0].Database != "old" {
		t.Errorf("entries did not survive reopen: %+v", got)
	}
}
