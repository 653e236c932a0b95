package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aegis-gate/aegis/internal/adapter/outbound/memory"
	"github.com/aegis-gate/aegis/internal/domain/audit"
)

// failingStore always errors on append; queries are empty.
type failingStore struct{}

func (failingStore) Append(context.Context, ...audit.Entry) error { return errors.New("disk full") }
func (failingStore) Query(context.Context, audit.Filter) ([]audit.Entry, error) {
	return nil, nil
}
func (failingStore) PurgeBefore(context.Context, time.Time) (int64, error) { return 0, nil }
func (failingStore) Close() error                                          { return nil }

func TestAuditLoggerLog(t *testing.T) {
	store := memory.NewAuditStore()
	logger := NewAuditLogger(store, testLogger(), nil)

	entry := logger.Log(context.Background(), LogInput{
		TenantID:  "t1",
		ActorID:   "u1",
		ActorType: "user",
		Action:    "read",
		Resource:  "doc:42",
		Result:    audit.ResultDenied,
		Details:   map[string]string{"reason": "nope"},
	})
	if entry.ID == "" {
		t.Error("expected assigned ID")
	}
	if entry.Timestamp.IsZero() {
		t.Error("expected assigned timestamp")
	}

	stored, err := logger.Query(context.Background(), audit.Filter{TenantID: "t1"})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(stored) != 1 || stored[0].ID != entry.ID {
		t.Errorf("stored = %+v", stored)
	}
}

func TestAuditLoggerWriteFailureIsolated(t *testing.T) {
	logger := NewAuditLogger(failingStore{}, testLogger(), nil)

	entry := logger.Log(context.Background(), LogInput{
		ActorID: "u1", ActorType: "user", Action: "read",
		Resource: "doc:1", Result: audit.ResultSuccess,
	})
	// The entry is still returned with identity assigned.
	if entry.ID == "" || entry.Timestamp.IsZero() {
		t.Errorf("entry = %+v", entry)
	}
	if logger.WriteFailures() != 1 {
		t.Errorf("WriteFailures() = %d, want 1", logger.WriteFailures())
	}
}

func TestAuditLoggerConvenienceFilters(t *testing.T) {
	store := memory.NewAuditStore()
	logger := NewAuditLogger(store, testLogger(), nil)
	ctx := context.Background()

	logger.Log(ctx, LogInput{ActorID: "u1", ActorType: "user", Action: "read", Resource: "doc:1", Result: audit.ResultSuccess})
	logger.Log(ctx, LogInput{ActorID: "u2", ActorType: "user", Action: "delete", Resource: "doc:1", Result: audit.ResultDenied})
	logger.Log(ctx, LogInput{ActorID: "u1", ActorType: "user", Action: "update", Resource: "doc:2", Result: audit.ResultDenied})

	recent, err := logger.GetRecent(ctx, 2)
	if err != nil || len(recent) != 2 {
		t.Fatalf("GetRecent() = %d entries, err %v", len(recent), err)
	}
	if recent[0].Action != "update" {
		t.Errorf("most recent action = %s", recent[0].Action)
	}

	byActor, _ := logger.GetByActor(ctx, "u1", 10)
	if len(byActor) != 2 {
		t.Errorf("GetByActor(u1) = %d entries, want 2", len(byActor))
	}

	denied, _ := logger.GetDenied(ctx, 10)
	if len(denied) != 2 {
		t.Errorf("GetDenied() = %d entries, want 2", len(denied))
	}
}

func TestAuditLoggerStats(t *testing.T) {
	store := memory.NewAuditStore()
	logger := NewAuditLogger(store, testLogger(), nil)
	ctx := context.Background()

	logger.Log(ctx, LogInput{TenantID: "t1", ActorID: "u1", ActorType: "user", Action: "read", Resource: "doc:1", Result: audit.ResultSuccess})
	logger.Log(ctx, LogInput{TenantID: "t1", ActorID: "u1", ActorType: "user", Action: "read", Resource: "doc:2", Result: audit.ResultDenied})
	logger.Log(ctx, LogInput{TenantID: "t2", ActorID: "u9", ActorType: "user", Action: "read", Resource: "doc:3", Result: audit.ResultSuccess})

	stats, err := logger.Stats(ctx, "t1")
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Total != 2 {
		t.Errorf("Total = %d, want 2", stats.Total)
	}
	if stats.ByResult[audit.ResultDenied] != 1 || stats.ByResult[audit.ResultSuccess] != 1 {
		t.Errorf("ByResult = %v", stats.ByResult)
	}
	if stats.ByActor["u1"] != 2 {
		t.Errorf("ByActor = %v", stats.ByActor)
	}
	if stats.ByAction["read"] != 2 {
		t.Errorf("ByAction = %v", stats.ByAction)
	}
}

func TestAuditLoggerTimeline(t *testing.T) {
	store := memory.NewAuditStore()
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	// Three entries in the first 15-minute window, one in the third.
	for _, offset := range []time.Duration{0, 5 * time.Minute, 10 * time.Minute, 35 * time.Minute} {
		store.Append(ctx, audit.Entry{
			ID: "e" + offset.String(), TenantID: "t1", ActorID: "u1",
			ActorType: "user", Action: "read", Resource: "doc:1",
			Result: audit.ResultSuccess, Timestamp: base.Add(offset),
		})
	}
	logger := NewAuditLogger(store, testLogger(), nil)

	buckets, err := logger.Timeline(ctx, audit.TimelineFilter{
		TenantID:      "t1",
		BucketMinutes: 15,
	})
	if err != nil {
		t.Fatalf("Timeline() error = %v", err)
	}
	if len(buckets) != 2 {
		t.Fatalf("Timeline() = %d buckets, want 2", len(buckets))
	}
	if !buckets[0].Start.Equal(base) || buckets[0].Count != 3 {
		t.Errorf("bucket 0 = %+v", buckets[0])
	}
	if !buckets[1].Start.Equal(base.Add(30*time.Minute)) || buckets[1].Count != 1 {
		t.Errorf("bucket 1 = %+v", buckets[1])
	}
}

func TestAuditLoggerExport(t *testing.T) {
	store := memory.NewAuditStore()
	logger := NewAuditLogger(store, testLogger(), nil)
	ctx := context.Background()

	first := logger.Log(ctx, LogInput{ActorID: "u1", ActorType: "user", Action: "read", Resource: "doc:1", Result: audit.ResultSuccess})
	second := logger.Log(ctx, LogInput{ActorID: "u2", ActorType: "user", Action: "read", Resource: "doc:2", Result: audit.ResultDenied})

	out, err := logger.Export(ctx, audit.Filter{})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("Export() = %d lines, want 2", len(lines))
	}

	// Oldest first, each line valid JSON.
	var decoded audit.Entry
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("line 0 not JSON: %v", err)
	}
	if decoded.ID != first.ID {
		t.Errorf("line 0 = %s, want oldest %s", decoded.ID, first.ID)
	}
	if err := json.Unmarshal([]byte(lines[1]), &decoded); err != nil {
		t.Fatalf("line 1 not JSON: %v", err)
	}
	if decoded.ID != second.ID {
		t.Errorf("line 1 = %s, want %s", decoded.ID, second.ID)
	}
}
