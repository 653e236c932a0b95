// Package service contains application services composing the domain.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/aegis-gate/aegis/internal/domain/policy"
)

// Evaluation reason strings. Callers and tests rely on these verbatim.
const (
	reasonNoPolicies  = "No policies defined"
	reasonDefaultDeny = "No matching policy rule (default deny)"
)

// lruEntry is a doubly-linked list node for the decision cache.
type lruEntry struct {
	key      uint64
	decision policy.Decision
	prev     *lruEntry
	next     *lruEntry
}

// decisionCache is a bounded LRU cache for evaluation results.
// Thread-safe with a Mutex (both Get and Put mutate LRU order).
type decisionCache struct {
	mu      sync.Mutex
	entries map[uint64]*lruEntry
	head    *lruEntry // most recently used
	tail    *lruEntry // least recently used
	maxSize int
}

// newDecisionCache creates an LRU cache with the given max size.
func newDecisionCache(maxSize int) *decisionCache {
	return &decisionCache{
		entries: make(map[uint64]*lruEntry, maxSize),
		maxSize: maxSize,
	}
}

// Get retrieves a cached decision, promoting the entry on hit.
func (c *decisionCache) Get(key uint64) (policy.Decision, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		c.moveToHeadLocked(e)
		return e.decision, true
	}
	return policy.Decision{}, false
}

// Put stores a decision, evicting the least recently used entry at
// capacity. A non-positive max size disables caching.
func (c *decisionCache) Put(key uint64, decision policy.Decision) {
	if c.maxSize <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.decision = decision
		c.moveToHeadLocked(e)
		return
	}
	if len(c.entries) >= c.maxSize {
		c.evictTailLocked()
	}
	e := &lruEntry{key: key, decision: decision}
	c.entries[key] = e
	c.pushHeadLocked(e)
}

// Size returns the current number of cached decisions.
func (c *decisionCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *decisionCache) moveToHeadLocked(e *lruEntry) {
	if c.head == e {
		return
	}
	c.unlinkLocked(e)
	c.pushHeadLocked(e)
}

func (c *decisionCache) pushHeadLocked(e *lruEntry) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *decisionCache) unlinkLocked(e *lruEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev = nil
	e.next = nil
}

func (c *decisionCache) evictTailLocked() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.unlinkLocked(c.tail)
}

// computeRequestKey hashes a request plus the policy store version into
// a cache key. Including the version means store mutations implicitly
// invalidate every cached decision.
func computeRequestKey(tenantID string, req policy.Request, storeVersion uint64) uint64 {
	h := xxhash.New()

	_, _ = h.WriteString(tenantID)
	_, _ = h.Write([]byte{0}) // separator
	_, _ = h.WriteString(req.ActorID)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(string(req.ActorType))
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(req.Resource)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(string(req.Action))
	_, _ = h.Write([]byte{0})

	// Context fields in sorted key order for determinism.
	if len(req.Context) > 0 {
		keys := make([]string, 0, len(req.Context))
		for k := range req.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			_, _ = h.WriteString(k)
			_, _ = h.Write([]byte{1})
			_, _ = h.WriteString(fmt.Sprintf("%v", req.Context[k].Interface()))
			_, _ = h.Write([]byte{0})
		}
	}

	_, _ = h.WriteString(strconv.FormatUint(storeVersion, 10))
	return h.Sum64()
}

// EvaluationService evaluates requests against a tenant's policy set.
// Evaluation is read-only and never errors for normal non-matches.
// Decisions are cached in a bounded LRU keyed by request and store
// version.
type EvaluationService struct {
	store  policy.Store
	cache  *decisionCache
	logger *slog.Logger
	tracer trace.Tracer
}

// EvaluationOption configures EvaluationService.
type EvaluationOption func(*EvaluationService)

// WithCacheSize sets the maximum number of cached decisions.
func WithCacheSize(size int) EvaluationOption {
	return func(s *EvaluationService) {
		s.cache = newDecisionCache(size)
	}
}

// NewEvaluationService creates an evaluation service over the given
// policy store.
func NewEvaluationService(store policy.Store, logger *slog.Logger, opts ...EvaluationOption) *EvaluationService {
	s := &EvaluationService{
		store:  store,
		cache:  newDecisionCache(1000),
		logger: logger,
		tracer: otel.Tracer("aegis/evaluation"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Evaluate runs the request against the tenant's enabled policies in
// priority order. Within a policy, rules are evaluated in array order
// and the first match wins. If nothing matches the outcome is deny.
func (s *EvaluationService) Evaluate(ctx context.Context, tenantID string, req policy.Request) (policy.Decision, error) {
	ctx, span := s.tracer.Start(ctx, "policy.evaluate",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.String("actor.id", req.ActorID),
			attribute.String("actor.type", string(req.ActorType)),
			attribute.String("resource", req.Resource),
			attribute.String("action", string(req.Action)),
		))
	defer span.End()

	key := computeRequestKey(tenantID, req, s.store.Version())
	if d, ok := s.cache.Get(key); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true), attribute.Bool("allowed", d.Allowed))
		return d, nil
	}

	d, err := s.evaluate(ctx, tenantID, req)
	if err != nil {
		return policy.Decision{}, err
	}

	s.cache.Put(key, d)
	span.SetAttributes(attribute.Bool("cache.hit", false), attribute.Bool("allowed", d.Allowed))
	return d, nil
}

// evaluate is the uncached evaluation path.
func (s *EvaluationService) evaluate(ctx context.Context, tenantID string, req policy.Request) (policy.Decision, error) {
	policies, err := s.store.ListByTenant(ctx, tenantID)
	if err != nil {
		return policy.Decision{}, fmt.Errorf("list policies for tenant %s: %w", tenantID, err)
	}

	enabled := policies[:0:0]
	for _, p := range policies {
		if p.Enabled {
			enabled = append(enabled, p)
		}
	}
	if len(enabled) == 0 {
		return policy.Decision{Allowed: false, Reason: reasonNoPolicies, MatchedRule: -1}, nil
	}

	for _, p := range enabled {
		for i, rule := range p.Rules {
			if !policy.Matches(rule, req) {
				continue
			}
			return policy.Decision{
				Allowed:       rule.Effect == policy.EffectAllow,
				Reason:        fmt.Sprintf("Matched policy %s rule %d", p.Name, i+1),
				MatchedPolicy: p.ID,
				MatchedRule:   i,
			}, nil
		}
	}

	return policy.Decision{Allowed: false, Reason: reasonDefaultDeny, MatchedRule: -1}, nil
}
