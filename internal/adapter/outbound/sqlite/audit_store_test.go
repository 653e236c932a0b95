package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/aegis-gate/aegis/internal/domain/audit"
)

func openTestStore(t *testing.T) *AuditStore {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteAuditStoreRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	ts := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	want := audit.Entry{
		ID:        "e1",
		TenantID:  "t1",
		ActorID:   "u1",
		ActorType: "user",
		Action:    "read",
		Resource:  "doc:42",
		Result:    audit.ResultDenied,
		Details:   map[string]string{"reason": "No matching policy rule (default deny)"},
		Timestamp: ts,
	}
	if err := store.Append(ctx, want); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	got, err := store.Query(ctx, audit.Filter{TenantID: "t1"})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Query() returned %d entries, want 1", len(got))
	}
	e := got[0]
	if e.ID != want.ID || e.ActorID != want.ActorID || e.Result != want.Result {
		t.Errorf("entry = %+v", e)
	}
	if !e.Timestamp.Equal(ts) {
		t.Errorf("timestamp = %v, want %v", e.Timestamp, ts)
	}
	if e.Details["reason"] != want.Details["reason"] {
		t.Errorf("details = %v", e.Details)
	}
}

func TestSQLiteAuditStoreFilterAndOrder(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	for i, result := range []string{audit.ResultSuccess, audit.ResultDenied, audit.ResultSuccess} {
		err := store.Append(ctx, audit.Entry{
			ID:        "e" + string(rune('0'+i)),
			TenantID:  "t1",
			ActorID:   "u1",
			ActorType: "agent",
			Action:    "execute",
			Resource:  "task:1",
			Result:    result,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	got, err := store.Query(ctx, audit.Filter{})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 3 || got[0].ID != "e2" || got[2].ID != "e0" {
		t.Errorf("unexpected order: %+v", got)
	}

	denied, err := store.Query(ctx, audit.Filter{Result: audit.ResultDenied})
	if err != nil {
		t.Fatalf("Query(denied) error = %v", err)
	}
	if len(denied) != 1 || denied[0].ID != "e1" {
		t.Errorf("denied = %+v", denied)
	}

	limited, err := store.Query(ctx, audit.Filter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("Query(limit) error = %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "e1" {
		t.Errorf("limit/offset = %+v", limited)
	}
}

func TestSQLiteAuditStorePurgeBefore(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		store.Append(ctx, audit.Entry{
			ID:        "e" + string(rune('0'+i)),
			ActorID:   "u1",
			ActorType: "user",
			Action:    "read",
			Resource:  "doc:1",
			Result:    audit.ResultSuccess,
			Timestamp: base.Add(time.Duration(i) * time.Hour),
		})
	}

	removed, err := store.PurgeBefore(ctx, base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("PurgeBefore() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("PurgeBefore() removed %d, want 2", removed)
	}

	remaining, _ := store.Query(ctx, audit.Filter{})
	if len(remaining) != 2 {
		t.Errorf("%d entries remain, want 2", len(remaining))
	}
}
