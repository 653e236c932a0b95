package integration

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aegis-gate/aegis/internal/adapter/outbound/memory"
	"github.com/aegis-gate/aegis/internal/adapter/outbound/sqlite"
	"github.com/aegis-gate/aegis/internal/domain/audit"
	"github.com/aegis-gate/aegis/internal/domain/policy"
	"github.com/aegis-gate/aegis/internal/service"
)

// TestAuditPipelineSQLiteAsync runs permission checks through the full
// async pipeline into a sqlite store and reads them back after flush.
func TestAuditPipelineSQLiteAsync(t *testing.T) {
	ctx := context.Background()

	dbPath := filepath.Join(t.TempDir(), "audit.db")
	store, err := sqlite.Open(dbPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	appender := service.NewAsyncAppender(store, testLogger(),
		service.WithBatchSize(10),
		service.WithFlushInterval(50*time.Millisecond),
	)
	appender.Start(ctx)

	policies := memory.NewPolicyStore()
	eval := service.NewEvaluationService(policies, testLogger())
	auditLog := service.NewAuditLogger(appender, testLogger(), nil)
	svc := service.NewPermissionService(eval, auditLog, service.Config{AuditAll: true}, testLogger(), nil)

	if err := service.SeedBuiltinPolicies(ctx, policies, "acme", testLogger()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	agent := policy.Request{
		ActorID: "agent-1", ActorType: policy.ActorTypeAgent,
		Resource: "task:1", Action: policy.ActionRead,
	}
	if ok, err := svc.Check(ctx, "acme", agent); err != nil || !ok {
		t.Fatalf("Check(task read) = %v, %v", ok, err)
	}
	blocked := agent
	blocked.Resource = "tenant:acme"
	if ok, err := svc.Check(ctx, "acme", blocked); err != nil || ok {
		t.Fatalf("Check(tenant read) = %v, %v", ok, err)
	}

	// Close flushes pending entries and closes the database.
	if err := appender.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := sqlite.Open(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	entries, err := reopened.Query(ctx, audit.Filter{TenantID: "acme"})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	// Most recent first: the denial came second.
	if entries[0].Result != audit.ResultDenied || entries[1].Result != audit.ResultSuccess {
		t.Errorf("order = %s, %s", entries[0].Result, entries[1].Result)
	}
}

// TestAuditPipelineExportRoundTrip checks that an exported NDJSON dump
// reflects the persisted entries oldest first.
func TestAuditPipelineExportRoundTrip(t *testing.T) {
	ctx := context.Background()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer store.Close()

	auditLog := service.NewAuditLogger(store, testLogger(), nil)
	for _, resource := range []string{"doc:1", "doc:2", "doc:3"} {
		auditLog.Log(ctx, service.LogInput{
			TenantID: "acme", ActorID: "alice", ActorType: "user",
			Action: "read", Resource: resource, Result: audit.ResultSuccess,
		})
	}

	out, err := auditLog.Export(ctx, audit.Filter{TenantID: "acme"})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3", len(lines))
	}
	if !strings.Contains(lines[0], "doc:1") || !strings.Contains(lines[2], "doc:3") {
		t.Errorf("export not oldest first:\n%s", out)
	}
}
