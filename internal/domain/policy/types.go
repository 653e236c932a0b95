// Package policy contains domain types for tenant-scoped access control.
package policy

import "time"

// Effect is the outcome a rule produces when it matches.
type Effect string

const (
	// EffectAllow permits the request.
	EffectAllow Effect = "allow"
	// EffectDeny blocks the request.
	EffectDeny Effect = "deny"
)

// ActorType identifies the kind of entity requesting access.
type ActorType string

const (
	ActorTypeUser    ActorType = "user"
	ActorTypeAgent   ActorType = "agent"
	ActorTypeService ActorType = "service"
	ActorTypeSystem  ActorType = "system"
	// ActorTypeAny matches any actor type in a matcher.
	ActorTypeAny ActorType = "*"
)

// Action is the operation being requested on a resource.
type Action string

const (
	ActionCreate  Action = "create"
	ActionRead    Action = "read"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionExecute Action = "execute"
	ActionAdmin   Action = "admin"
	// ActionAny matches any action in a rule's action list.
	ActionAny Action = "*"
)

// Operator is a condition comparison operator.
type Operator string

const (
	OperatorEq       Operator = "eq"
	OperatorNeq      Operator = "neq"
	OperatorIn       Operator = "in"
	OperatorNin      Operator = "nin"
	OperatorGt       Operator = "gt"
	OperatorLt       Operator = "lt"
	OperatorContains Operator = "contains"
)

// ActorMatcher matches a request's actor by type and ID pattern.
// Pattern is a glob where '*' matches any run of characters; the full
// actor ID must match.
type ActorMatcher struct {
	// Type is the actor type to match, or "*" for any type.
	Type ActorType `json:"type"`
	// Pattern is the glob pattern matched against the actor ID.
	Pattern string `json:"pattern"`
}

// Condition is a contextual constraint evaluated against the request's
// context map. A condition on a missing field behaves as if the field
// were null: the numeric and string operators fail closed.
type Condition struct {
	// Field is the context key the condition reads.
	Field string `json:"field"`
	// Operator selects the comparison.
	Operator Operator `json:"operator"`
	// Value is the right-hand side of the comparison.
	// For in/nin it must be a list value.
	Value Value `json:"value"`
}

// Rule is one allow/deny clause inside a policy. Rules are value types
// with no identity of their own; they live in a policy's ordered rule
// list and the first matching rule wins within that policy.
type Rule struct {
	// Effect is the outcome when this rule matches.
	Effect Effect `json:"effect"`
	// Actors is the set of actor matchers; ANY may match.
	Actors []ActorMatcher `json:"actors"`
	// Resources is the set of resource glob patterns; ANY may match.
	Resources []string `json:"resources"`
	// Actions is the set of permitted actions; "*" matches any.
	Actions []Action `json:"actions"`
	// Conditions, when present, must ALL hold.
	Conditions []Condition `json:"conditions,omitempty"`
}

// Policy is a tenant-owned, priority-ordered collection of rules.
// Identity fields (ID, TenantID, CreatedAt) are immutable after creation.
type Policy struct {
	// ID is the unique identifier for this policy.
	ID string `json:"id"`
	// TenantID scopes the policy to one tenant.
	TenantID string `json:"tenant_id"`
	// Name is the human-readable name for this policy.
	Name string `json:"name"`
	// Description provides additional context about the policy.
	Description string `json:"description,omitempty"`
	// Rules are evaluated in order; first match wins.
	Rules []Rule `json:"rules"`
	// Priority orders policies within a tenant (higher evaluates first).
	Priority int `json:"priority"`
	// Enabled indicates whether the policy participates in evaluation.
	Enabled bool `json:"enabled"`
	// CreatedAt is when the policy was created (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// Request describes one access check: who wants to do what to which
// resource, with optional contextual attributes.
type Request struct {
	// ActorID identifies the requesting entity.
	ActorID string `json:"actor_id"`
	// ActorType is the kind of requesting entity.
	ActorType ActorType `json:"actor_type"`
	// Resource is the protected resource identifier.
	Resource string `json:"resource"`
	// Action is the requested operation.
	Action Action `json:"action"`
	// Context carries request attributes for condition evaluation.
	Context Context `json:"context,omitempty"`
}

// Decision is the outcome of evaluating a request against a tenant's
// policy set.
type Decision struct {
	// Allowed is true if the request is permitted.
	Allowed bool `json:"allowed"`
	// Reason explains why the decision was made.
	Reason string `json:"reason"`
	// MatchedPolicy is the ID of the policy that decided, if any.
	MatchedPolicy string `json:"matched_policy,omitempty"`
	// MatchedRule is the zero-based index of the deciding rule within
	// the matched policy. Only meaningful when MatchedPolicy is set.
	MatchedRule int `json:"matched_rule"`
}

// knownOperators is the closed set of supported condition operators.
var knownOperators = map[Operator]struct{}{
	OperatorEq: {}, OperatorNeq: {}, OperatorIn: {}, OperatorNin: {},
	OperatorGt: {}, OperatorLt: {}, OperatorContains: {},
}

// knownActions is the closed set of permission actions.
var knownActions = map[Action]struct{}{
	ActionCreate: {}, ActionRead: {}, ActionUpdate: {}, ActionDelete: {},
	ActionExecute: {}, ActionAdmin: {}, ActionAny: {},
}

// knownActorTypes is the closed set of actor types accepted in matchers.
var knownActorTypes = map[ActorType]struct{}{
	ActorTypeUser: {}, ActorTypeAgent: {}, ActorTypeService: {},
	ActorTypeSystem: {}, ActorTypeAny: {},
}
