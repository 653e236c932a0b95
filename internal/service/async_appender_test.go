package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/aegis-gate/aegis/internal/adapter/outbound/memory"
	"github.com/aegis-gate/aegis/internal/domain/audit"
)

func testEntry(id string) audit.Entry {
	return audit.Entry{
		ID:        id,
		TenantID:  "t1",
		ActorID:   "u1",
		ActorType: "user",
		Action:    "read",
		Resource:  "doc:1",
		Result:    audit.ResultSuccess,
		Timestamp: time.Now().UTC(),
	}
}

func TestAsyncAppenderFlushOnStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := memory.NewAuditStore()
	appender := NewAsyncAppender(store, testLogger(),
		WithBatchSize(100),
		WithFlushInterval(time.Hour),
	)
	appender.Start(context.Background())

	for _, id := range []string{"a", "b", "c"} {
		appender.Append(context.Background(), testEntry(id))
	}
	appender.Stop()

	entries, err := store.Query(context.Background(), audit.Filter{})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("flushed %d entries, want 3", len(entries))
	}
}

func TestAsyncAppenderBatchFlush(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := memory.NewAuditStore()
	appender := NewAsyncAppender(store, testLogger(),
		WithBatchSize(2),
		WithFlushInterval(time.Hour),
	)
	appender.Start(context.Background())
	defer appender.Stop()

	appender.Append(context.Background(), testEntry("a"), testEntry("b"))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if store.Len() >= 2 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Errorf("batch not flushed, store has %d entries", store.Len())
}

func TestAsyncAppenderDropsWhenFull(t *testing.T) {
	store := memory.NewAuditStore()
	// Worker never started: the channel fills and overflow drops.
	appender := NewAsyncAppender(store, testLogger(),
		WithChannelSize(1),
		WithSendTimeout(0),
	)

	appender.Append(context.Background(), testEntry("a"), testEntry("b"), testEntry("c"))

	if got := appender.DroppedEntries(); got != 2 {
		t.Errorf("DroppedEntries() = %d, want 2", got)
	}
}

func TestAsyncAppenderCloseClosesStore(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := memory.NewAuditStore()
	appender := NewAsyncAppender(store, testLogger())
	appender.Start(context.Background())

	appender.Append(context.Background(), testEntry("a"))
	if err := appender.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if store.Len() != 1 {
		t.Errorf("store has %d entries after Close, want 1", store.Len())
	}
}

func TestAsyncAppenderQueryPassthrough(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := memory.NewAuditStore()
	store.Append(context.Background(), testEntry("pre"))

	appender := NewAsyncAppender(store, testLogger())
	appender.Start(context.Background())
	defer appender.Stop()

	entries, err := appender.Query(context.Background(), audit.Filter{ActorID: "u1"})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "pre" {
		t.Errorf("entries = %+v", entries)
	}
}
