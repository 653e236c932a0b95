package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aegis-gate/aegis/internal/domain/policy"
)

// Names of the built-in policies seeded per tenant. After seeding they
// are ordinary policies: editable and removable.
const (
	AdminPolicyName = "admin-full-access"
	AgentPolicyName = "agent-baseline"
)

// AdminPolicyInput returns the built-in admin policy: any actor whose
// request context carries role=admin is allowed every action on every
// resource.
func AdminPolicyInput(tenantID string) policy.CreateInput {
	return policy.CreateInput{
		TenantID:    tenantID,
		Name:        AdminPolicyName,
		Description: "Full access for actors with the admin role",
		Priority:    100,
		Rules: []policy.Rule{
			{
				Effect:    policy.EffectAllow,
				Actors:    []policy.ActorMatcher{{Type: policy.ActorTypeAny, Pattern: "*"}},
				Resources: []string{"*"},
				Actions:   []policy.Action{policy.ActionAny},
				Conditions: []policy.Condition{
					{Field: "role", Operator: policy.OperatorEq, Value: policy.String("admin")},
				},
			},
		},
	}
}

// AgentPolicyInput returns the built-in agent policy: agents may read,
// create, update, and execute task, memory, and vault resources, and
// are explicitly denied all access to user, tenant, and policy
// resources. The deny rule comes first so it wins within the policy.
func AgentPolicyInput(tenantID string) policy.CreateInput {
	agents := []policy.ActorMatcher{{Type: policy.ActorTypeAgent, Pattern: "*"}}
	return policy.CreateInput{
		TenantID:    tenantID,
		Name:        AgentPolicyName,
		Description: "Baseline capabilities and restrictions for autonomous agents",
		Priority:    50,
		Rules: []policy.Rule{
			{
				Effect:    policy.EffectDeny,
				Actors:    agents,
				Resources: []string{"user:*", "tenant:*", "policy:*"},
				Actions:   []policy.Action{policy.ActionAny},
			},
			{
				Effect:    policy.EffectAllow,
				Actors:    agents,
				Resources: []string{"task:*", "memory:*", "vault:*"},
				Actions: []policy.Action{
					policy.ActionRead, policy.ActionCreate,
					policy.ActionUpdate, policy.ActionExecute,
				},
			},
		},
	}
}

// SeedBuiltinPolicies creates the built-in policies for a tenant unless
// policies with the same names already exist. Idempotent.
func SeedBuiltinPolicies(ctx context.Context, store policy.Store, tenantID string, logger *slog.Logger) error {
	existing, err := store.ListByTenant(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("check existing policies for tenant %s: %w", tenantID, err)
	}
	present := make(map[string]struct{}, len(existing))
	for _, p := range existing {
		present[p.Name] = struct{}{}
	}

	seeded := 0
	for _, in := range []policy.CreateInput{AdminPolicyInput(tenantID), AgentPolicyInput(tenantID)} {
		if _, ok := present[in.Name]; ok {
			continue
		}
		if _, err := store.Create(ctx, in); err != nil {
			return fmt.Errorf("seed policy %s: %w", in.Name, err)
		}
		seeded++
	}

	if seeded > 0 {
		logger.Info("seeded built-in policies",
			"tenant_id", tenantID,
			"count", seeded,
		)
	}
	return nil
}
