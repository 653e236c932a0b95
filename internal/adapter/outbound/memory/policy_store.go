// Package memory provides in-memory implementations of outbound ports.
package memory

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/aegis-gate/aegis/internal/domain/policy"
)

// storedPolicy pairs a policy with its insertion sequence number, the
// stable secondary sort key for priority ties.
type storedPolicy struct {
	policy *policy.Policy
	seq    uint64
}

// PolicyStore implements policy.Store with tenant-indexed in-memory
// maps. Thread-safe for concurrent readers and writers. A real
// deployment swaps in a durable store behind the same interface.
type PolicyStore struct {
	mu        sync.RWMutex
	policies  map[string]*storedPolicy          // policy ID -> record
	tenantIdx map[string]map[string]struct{}    // tenant ID -> policy IDs
	nextSeq   uint64
	version   atomic.Uint64
}

// NewPolicyStore creates an empty in-memory policy store.
func NewPolicyStore() *PolicyStore {
	return &PolicyStore{
		policies:  make(map[string]*storedPolicy),
		tenantIdx: make(map[string]map[string]struct{}),
	}
}

// Create validates the rules, assigns a fresh UUID and creation
// timestamp, and indexes the policy by tenant.
func (s *PolicyStore) Create(ctx context.Context, in policy.CreateInput) (*policy.Policy, error) {
	if err := policy.ValidateRules(in.Rules); err != nil {
		return nil, err
	}

	enabled := true
	if in.Enabled != nil {
		enabled = *in.Enabled
	}

	p := &policy.Policy{
		ID:          uuid.NewString(),
		TenantID:    in.TenantID,
		Name:        in.Name,
		Description: in.Description,
		Rules:       copyRules(in.Rules),
		Priority:    in.Priority,
		Enabled:     enabled,
		CreatedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSeq++
	s.policies[p.ID] = &storedPolicy{policy: p, seq: s.nextSeq}
	idx, ok := s.tenantIdx[p.TenantID]
	if !ok {
		idx = make(map[string]struct{})
		s.tenantIdx[p.TenantID] = idx
	}
	idx[p.ID] = struct{}{}
	s.version.Add(1)

	return copyPolicy(p), nil
}

// Get returns a policy by ID, or policy.ErrPolicyNotFound.
func (s *PolicyStore) Get(ctx context.Context, id string) (*policy.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.policies[id]
	if !ok {
		return nil, policy.ErrPolicyNotFound
	}
	return copyPolicy(rec.policy), nil
}

// Update merges the non-nil fields into the policy. Identity fields are
// never touched. Updated rules are re-validated before the merge.
func (s *PolicyStore) Update(ctx context.Context, id string, upd policy.Update) (*policy.Policy, error) {
	if upd.Rules != nil {
		if err := policy.ValidateRules(*upd.Rules); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.policies[id]
	if !ok {
		return nil, policy.ErrPolicyNotFound
	}

	p := rec.policy
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	if upd.Rules != nil {
		p.Rules = copyRules(*upd.Rules)
	}
	if upd.Priority != nil {
		p.Priority = *upd.Priority
	}
	if upd.Enabled != nil {
		p.Enabled = *upd.Enabled
	}
	s.version.Add(1)

	return copyPolicy(p), nil
}

// Delete removes a policy from the primary map and the tenant index,
// reporting whether it existed.
func (s *PolicyStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.policies[id]
	if !ok {
		return false, nil
	}
	delete(s.policies, id)
	if idx, ok := s.tenantIdx[rec.policy.TenantID]; ok {
		delete(idx, id)
		if len(idx) == 0 {
			delete(s.tenantIdx, rec.policy.TenantID)
		}
	}
	s.version.Add(1)
	return true, nil
}

// ListByTenant returns the tenant's policies sorted by priority
// descending; priority ties keep insertion order.
func (s *PolicyStore) ListByTenant(ctx context.Context, tenantID string) ([]policy.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.tenantIdx[tenantID]
	if len(idx) == 0 {
		return nil, nil
	}

	recs := make([]*storedPolicy, 0, len(idx))
	for id := range idx {
		recs = append(recs, s.policies[id])
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].policy.Priority != recs[j].policy.Priority {
			return recs[i].policy.Priority > recs[j].policy.Priority
		}
		return recs[i].seq < recs[j].seq
	})

	result := make([]policy.Policy, 0, len(recs))
	for _, rec := range recs {
		result = append(result, *copyPolicy(rec.policy))
	}
	return result, nil
}

// Version returns the mutation counter.
func (s *PolicyStore) Version() uint64 {
	return s.version.Load()
}

// copyPolicy creates a deep copy so callers cannot mutate stored state.
func copyPolicy(p *policy.Policy) *policy.Policy {
	cp := *p
	cp.Rules = copyRules(p.Rules)
	return &cp
}

// copyRules deep-copies a rule slice including nested matcher lists.
func copyRules(rules []policy.Rule) []policy.Rule {
	out := make([]policy.Rule, len(rules))
	for i, r := range rules {
		out[i] = r
		out[i].Actors = append([]policy.ActorMatcher(nil), r.Actors...)
		out[i].Resources = append([]string(nil), r.Resources...)
		out[i].Actions = append([]policy.Action(nil), r.Actions...)
		out[i].Conditions = append([]policy.Condition(nil), r.Conditions...)
	}
	return out
}

// Compile-time interface verification.
var _ policy.Store = (*PolicyStore)(nil)
