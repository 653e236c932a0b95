package service

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/aegis-gate/aegis/internal/adapter/outbound/memory"
	"github.com/aegis-gate/aegis/internal/domain/policy"
)

func gatherCounter(t *testing.T, reg *prometheus.Registry, name, labelValue string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelValue == "" && len(m.GetLabel()) == 0 {
				return m.GetCounter().GetValue()
			}
			for _, l := range m.GetLabel() {
				if l.GetValue() == labelValue {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestMetricsCheckCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	policies := memory.NewPolicyStore()
	audits := memory.NewAuditStore()
	ctx := context.Background()
	policies.Create(ctx, policy.CreateInput{
		TenantID: "t1", Name: "doc-readers", Rules: docReadRules(),
	})

	eval := NewEvaluationService(policies, testLogger())
	auditLog := NewAuditLogger(audits, testLogger(), metrics)
	svc := NewPermissionService(eval, auditLog, Config{}, testLogger(), metrics)

	svc.Check(ctx, "t1", userReadRequest())
	svc.Check(ctx, "t1", userReadRequest())
	denied := userReadRequest()
	denied.Action = policy.ActionDelete
	svc.Check(ctx, "t1", denied)

	if got := gatherCounter(t, reg, "aegis_checks_total", "allow"); got != 2 {
		t.Errorf("checks_total{result=allow} = %v, want 2", got)
	}
	if got := gatherCounter(t, reg, "aegis_checks_total", "deny"); got != 1 {
		t.Errorf("checks_total{result=deny} = %v, want 1", got)
	}
}

func TestMetricsAuditWriteFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	logger := NewAuditLogger(failingStore{}, testLogger(), metrics)

	logger.Log(context.Background(), LogInput{
		ActorID: "u1", ActorType: "user", Action: "read",
		Resource: "doc:1", Result: "success",
	})
	logger.Log(context.Background(), LogInput{
		ActorID: "u1", ActorType: "user", Action: "read",
		Resource: "doc:2", Result: "success",
	})

	if got := gatherCounter(t, reg, "aegis_audit_write_failures_total", ""); got != 2 {
		t.Errorf("audit_write_failures_total = %v, want 2", got)
	}
}

func TestMetricsEvalDurationObserved(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	policies := memory.NewPolicyStore()
	eval := NewEvaluationService(policies, testLogger())
	auditLog := NewAuditLogger(memory.NewAuditStore(), testLogger(), metrics)
	svc := NewPermissionService(eval, auditLog, Config{}, testLogger(), metrics)

	svc.Check(context.Background(), "t1", userReadRequest())

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	var hist *dto.Histogram
	for _, mf := range families {
		if mf.GetName() == "aegis_evaluation_duration_seconds" {
			hist = mf.GetMetric()[0].GetHistogram()
		}
	}
	if hist == nil {
		t.Fatal("histogram not registered")
	}
	if hist.GetSampleCount() != 1 {
		t.Errorf("sample count = %d, want 1", hist.GetSampleCount())
	}
}
