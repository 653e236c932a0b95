package policy

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for policy store operations.
var (
	// ErrPolicyNotFound is returned when a policy lookup misses.
	ErrPolicyNotFound = errors.New("policy not found")
)

// CreateInput carries the fields for creating a policy. ID and CreatedAt
// are assigned by the store.
type CreateInput struct {
	// TenantID is the owning tenant (required).
	TenantID string
	// Name is the human-readable policy name (required).
	Name string
	// Description is optional context about the policy.
	Description string
	// Rules are the policy's ordered rules (at least one required).
	Rules []Rule
	// Priority orders the policy within its tenant (default 0).
	Priority int
	// Enabled controls participation in evaluation. Nil means true.
	Enabled *bool
}

// Update carries a partial policy update. Nil fields are left unchanged.
// Identity fields (ID, TenantID, CreatedAt) can never be updated.
type Update struct {
	Name        *string
	Description *string
	Rules       *[]Rule
	Priority    *int
	Enabled     *bool
}

// Store persists and retrieves tenant-scoped policies.
// Interface owned by the domain; adapters implement it.
type Store interface {
	// Create validates the rules, assigns a fresh ID and creation
	// timestamp, and indexes the policy by tenant.
	Create(ctx context.Context, in CreateInput) (*Policy, error)

	// Get returns a policy by ID, or ErrPolicyNotFound.
	Get(ctx context.Context, id string) (*Policy, error)

	// Update merges the non-nil fields into the policy and returns the
	// updated record, or ErrPolicyNotFound.
	Update(ctx context.Context, id string, upd Update) (*Policy, error)

	// Delete removes a policy, reporting whether it existed.
	Delete(ctx context.Context, id string) (bool, error)

	// ListByTenant returns the tenant's policies sorted by priority
	// descending, with insertion order as the stable tiebreak. Policies
	// of other tenants are never returned.
	ListByTenant(ctx context.Context, tenantID string) ([]Policy, error)

	// Version returns a counter that increases on every mutation.
	// Evaluators use it to invalidate cached decisions.
	Version() uint64
}

// ValidateRules rejects malformed rules at policy-creation time so that
// evaluation never has to error on them. It checks that every rule has a
// known effect, at least one actor matcher with a known type and a
// non-empty pattern, at least one resource pattern, at least one known
// action, and only known condition operators with list-typed values for
// in/nin.
func ValidateRules(rules []Rule) error {
	if len(rules) == 0 {
		return errors.New("policy requires at least one rule")
	}
	for i, rule := range rules {
		if rule.Effect != EffectAllow && rule.Effect != EffectDeny {
			return fmt.Errorf("rule %d: unknown effect %q", i, rule.Effect)
		}
		if len(rule.Actors) == 0 {
			return fmt.Errorf("rule %d: requires at least one actor matcher", i)
		}
		for j, m := range rule.Actors {
			if _, ok := knownActorTypes[m.Type]; !ok {
				return fmt.Errorf("rule %d: actor %d: unknown actor type %q", i, j, m.Type)
			}
			if m.Pattern == "" {
				return fmt.Errorf("rule %d: actor %d: empty pattern", i, j)
			}
		}
		if len(rule.Resources) == 0 {
			return fmt.Errorf("rule %d: requires at least one resource pattern", i)
		}
		for j, r := range rule.Resources {
			if r == "" {
				return fmt.Errorf("rule %d: resource %d: empty pattern", i, j)
			}
		}
		if len(rule.Actions) == 0 {
			return fmt.Errorf("rule %d: requires at least one action", i)
		}
		for j, a := range rule.Actions {
			if _, ok := knownActions[a]; !ok {
				return fmt.Errorf("rule %d: action %d: unknown action %q", i, j, a)
			}
		}
		for j, c := range rule.Conditions {
			if c.Field == "" {
				return fmt.Errorf("rule %d: condition %d: empty field", i, j)
			}
			if _, ok := knownOperators[c.Operator]; !ok {
				return fmt.Errorf("rule %d: condition %d: unsupported operator %q", i, j, c.Operator)
			}
			if c.Operator == OperatorIn || c.Operator == OperatorNin {
				if _, ok := c.Value.AsList(); !ok {
					return fmt.Errorf("rule %d: condition %d: operator %q requires a list value", i, j, c.Operator)
				}
			}
		}
	}
	return nil
}
