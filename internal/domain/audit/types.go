// Package audit contains domain types for the append-only decision log.
package audit

import "time"

// Result constants for audit entries.
const (
	// ResultSuccess indicates the request was allowed.
	ResultSuccess = "success"
	// ResultDenied indicates the request was denied.
	ResultDenied = "denied"
	// ResultError indicates evaluation failed outside normal matching.
	ResultError = "error"
)

// Entry is one immutable record of an evaluated decision. Entries are
// never mutated or deleted by the engine itself; retention purges are an
// administrative operation outside the hot path.
type Entry struct {
	// ID is the unique identifier for this entry.
	ID string `json:"id"`
	// TenantID scopes the entry to a tenant (optional).
	TenantID string `json:"tenant_id,omitempty"`
	// ActorID identifies who triggered the decision.
	ActorID string `json:"actor_id"`
	// ActorType is the kind of actor (user, agent, service, system).
	ActorType string `json:"actor_type"`
	// Action is the requested operation.
	Action string `json:"action"`
	// Resource is the requested resource.
	Resource string `json:"resource"`
	// Result is "success", "denied", or "error".
	Result string `json:"result"`
	// Details carries decision metadata such as the reason string and
	// the matched policy.
	Details map[string]string `json:"details,omitempty"`
	// Timestamp is when the entry was recorded (UTC).
	Timestamp time.Time `json:"timestamp"`
}

// Filter specifies query parameters for audit log queries. Zero-valued
// fields are ignored. Limit <= 0 means no limit.
type Filter struct {
	TenantID  string
	ActorID   string
	ActorType string
	Action    string
	Resource  string
	Result    string
	// From is the inclusive lower bound on Timestamp.
	From time.Time
	// To is the inclusive upper bound on Timestamp.
	To time.Time
	// Limit caps the number of returned entries.
	Limit int
	// Offset skips that many matching entries (applied after ordering).
	Offset int
}

// Stats contains aggregate counts over audit entries.
type Stats struct {
	// Total is the number of matching entries.
	Total int64 `json:"total"`
	// ByResult maps result values to counts.
	ByResult map[string]int64 `json:"by_result"`
	// ByActor maps actor IDs to counts.
	ByActor map[string]int64 `json:"by_actor"`
	// ByAction maps actions to counts.
	ByAction map[string]int64 `json:"by_action"`
}

// TimelineBucket is one fixed-size time window with its entry count.
type TimelineBucket struct {
	// Start is the inclusive beginning of the window (UTC).
	Start time.Time `json:"start"`
	// Count is the number of entries whose timestamp falls in the window.
	Count int64 `json:"count"`
}

// TimelineFilter selects entries for time-bucketed aggregation.
type TimelineFilter struct {
	TenantID string
	ActorID  string
	// BucketMinutes is the window size. Values <= 0 default to 60.
	BucketMinutes int
	From          time.Time
	To            time.Time
}
