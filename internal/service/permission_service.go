package service

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/aegis-gate/aegis/internal/domain/audit"
	"github.com/aegis-gate/aegis/internal/domain/policy"
)

// PermissionDeniedError is returned by Enforce when a request is not
// allowed. Reason carries the evaluator's rationale for operator-facing
// diagnostics; callers decide whether to redact it before showing end
// users.
type PermissionDeniedError struct {
	Reason string
}

// Error implements the error interface.
func (e *PermissionDeniedError) Error() string {
	return "permission denied: " + e.Reason
}

// Config is the engine configuration consumed at construction.
type Config struct {
	// DefaultDeny is accepted for forward compatibility. Evaluation
	// always default-denies regardless of this flag; see DESIGN.md.
	DefaultDeny bool
	// AuditAll logs every decision. Denials are logged regardless.
	AuditAll bool
}

// PermissionService composes the evaluator and the audit logger into
// the check/enforce/bulk-check surface consumed by callers.
type PermissionService struct {
	eval     *EvaluationService
	auditLog *AuditLogger
	cfg      Config
	logger   *slog.Logger
	metrics  *Metrics
	tracer   trace.Tracer
}

// NewPermissionService creates the permission facade. metrics may be
// nil.
func NewPermissionService(eval *EvaluationService, auditLog *AuditLogger, cfg Config, logger *slog.Logger, metrics *Metrics) *PermissionService {
	return &PermissionService{
		eval:     eval,
		auditLog: auditLog,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		tracer:   otel.Tracer("aegis/permission"),
	}
}

// Check evaluates the request and returns the boolean verdict.
// The decision is audited when AuditAll is set or the result is a
// denial; denials are always logged.
func (s *PermissionService) Check(ctx context.Context, tenantID string, req policy.Request) (bool, error) {
	d, err := s.CheckWithDetails(ctx, tenantID, req)
	if err != nil {
		return false, err
	}
	return d.Allowed, nil
}

// CheckWithDetails evaluates the request and returns the full decision
// for diagnostics. Same audit policy as Check.
func (s *PermissionService) CheckWithDetails(ctx context.Context, tenantID string, req policy.Request) (policy.Decision, error) {
	ctx, span := s.tracer.Start(ctx, "permission.check",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.String("resource", req.Resource),
			attribute.String("action", string(req.Action)),
		))
	defer span.End()

	start := time.Now()
	d, err := s.eval.Evaluate(ctx, tenantID, req)
	if err != nil {
		s.logger.Error("policy evaluation failed",
			"error", err,
			"tenant_id", tenantID,
			"resource", req.Resource,
		)
		s.logDecision(ctx, tenantID, req, policy.Decision{Reason: err.Error()}, audit.ResultError)
		return policy.Decision{}, err
	}

	if s.metrics != nil {
		s.metrics.EvalDuration.Observe(time.Since(start).Seconds())
		result := "deny"
		if d.Allowed {
			result = "allow"
		}
		s.metrics.ChecksTotal.WithLabelValues(result).Inc()
	}
	span.SetAttributes(attribute.Bool("allowed", d.Allowed))

	if !d.Allowed {
		// Denials are always audited, regardless of AuditAll.
		s.logDecision(ctx, tenantID, req, d, audit.ResultDenied)
	} else if s.cfg.AuditAll {
		s.logDecision(ctx, tenantID, req, d, audit.ResultSuccess)
	}

	return d, nil
}

// Enforce evaluates the request and fails with *PermissionDeniedError
// when it is not allowed.
func (s *PermissionService) Enforce(ctx context.Context, tenantID string, req policy.Request) error {
	d, err := s.CheckWithDetails(ctx, tenantID, req)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return &PermissionDeniedError{Reason: d.Reason}
	}
	return nil
}

// RequestKey identifies a request within a CheckMultiple result map.
func RequestKey(req policy.Request) string {
	return strings.Join([]string{req.ActorID, req.Resource, string(req.Action)}, "|")
}

// CheckMultiple evaluates a batch sequentially for deterministic audit
// ordering. One denial does not abort the rest of the batch.
func (s *PermissionService) CheckMultiple(ctx context.Context, tenantID string, reqs []policy.Request) (map[string]bool, error) {
	results := make(map[string]bool, len(reqs))
	for _, req := range reqs {
		allowed, err := s.Check(ctx, tenantID, req)
		if err != nil {
			return nil, err
		}
		results[RequestKey(req)] = allowed
	}
	return results, nil
}

// CanAny reports whether any of the candidate actions is allowed for
// the actor on the resource. Short-circuits on the first allow.
func (s *PermissionService) CanAny(ctx context.Context, tenantID string, req policy.Request, actions []policy.Action) (bool, error) {
	for _, action := range actions {
		candidate := req
		candidate.Action = action
		allowed, err := s.Check(ctx, tenantID, candidate)
		if err != nil {
			return false, err
		}
		if allowed {
			return true, nil
		}
	}
	return false, nil
}

// CanAll reports whether every candidate action is allowed for the
// actor on the resource. Short-circuits on the first deny.
func (s *PermissionService) CanAll(ctx context.Context, tenantID string, req policy.Request, actions []policy.Action) (bool, error) {
	for _, action := range actions {
		candidate := req
		candidate.Action = action
		allowed, err := s.Check(ctx, tenantID, candidate)
		if err != nil {
			return false, err
		}
		if !allowed {
			return false, nil
		}
	}
	return true, nil
}

// logDecision writes one audit entry for an evaluated decision.
func (s *PermissionService) logDecision(ctx context.Context, tenantID string, req policy.Request, d policy.Decision, result string) {
	details := map[string]string{"reason": d.Reason}
	if d.MatchedPolicy != "" {
		details["matched_policy"] = d.MatchedPolicy
		details["matched_rule"] = strconv.Itoa(d.MatchedRule)
	}
	s.auditLog.Log(ctx, LogInput{
		TenantID:  tenantID,
		ActorID:   req.ActorID,
		ActorType: string(req.ActorType),
		Action:    string(req.Action),
		Resource:  req.Resource,
		Result:    result,
		Details:   details,
	})
}
