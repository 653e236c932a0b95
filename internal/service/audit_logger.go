package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/aegis-gate/aegis/internal/domain/audit"
)

// LogInput carries the caller-supplied fields of an audit entry.
// ID and Timestamp are assigned by the logger.
type LogInput struct {
	TenantID  string
	ActorID   string
	ActorType string
	Action    string
	Resource  string
	Result    string
	Details   map[string]string
}

// AuditLogger records decisions into an audit.Store and serves queries,
// aggregations, and exports over it.
//
// Write failures never propagate to the caller: a permission decision
// that was already computed must not be altered or blocked by the audit
// path. Failures are logged, counted, and surfaced via metrics.
type AuditLogger struct {
	store         audit.Store
	logger        *slog.Logger
	metrics       *Metrics
	writeFailures atomic.Int64
}

// NewAuditLogger creates an audit logger over the given store.
// metrics may be nil.
func NewAuditLogger(store audit.Store, logger *slog.Logger, metrics *Metrics) *AuditLogger {
	return &AuditLogger{store: store, logger: logger, metrics: metrics}
}

// Log assigns an ID and timestamp, appends the entry, and returns it.
// The returned entry is valid even when the underlying append failed.
func (l *AuditLogger) Log(ctx context.Context, in LogInput) audit.Entry {
	entry := audit.Entry{
		ID:        uuid.NewString(),
		TenantID:  in.TenantID,
		ActorID:   in.ActorID,
		ActorType: in.ActorType,
		Action:    in.Action,
		Resource:  in.Resource,
		Result:    in.Result,
		Details:   in.Details,
		Timestamp: time.Now().UTC(),
	}

	if err := l.store.Append(ctx, entry); err != nil {
		failures := l.writeFailures.Add(1)
		if l.metrics != nil {
			l.metrics.AuditWriteFailures.Inc()
		}
		l.logger.Error("failed to write audit entry",
			"error", err,
			"entry_id", entry.ID,
			"tenant_id", entry.TenantID,
			"total_failures", failures,
		)
	}
	return entry
}

// WriteFailures returns the total number of failed appends.
func (l *AuditLogger) WriteFailures() int64 {
	return l.writeFailures.Load()
}

// Query returns entries matching the filter, most recent first.
func (l *AuditLogger) Query(ctx context.Context, filter audit.Filter) ([]audit.Entry, error) {
	return l.store.Query(ctx, filter)
}

// GetRecent returns the most recent entries up to limit.
func (l *AuditLogger) GetRecent(ctx context.Context, limit int) ([]audit.Entry, error) {
	return l.store.Query(ctx, audit.Filter{Limit: limit})
}

// GetByActor returns the most recent entries for one actor.
func (l *AuditLogger) GetByActor(ctx context.Context, actorID string, limit int) ([]audit.Entry, error) {
	return l.store.Query(ctx, audit.Filter{ActorID: actorID, Limit: limit})
}

// GetDenied returns the most recent denied entries.
func (l *AuditLogger) GetDenied(ctx context.Context, limit int) ([]audit.Entry, error) {
	return l.store.Query(ctx, audit.Filter{Result: audit.ResultDenied, Limit: limit})
}

// Stats aggregates counts over all entries, optionally scoped to one
// tenant.
func (l *AuditLogger) Stats(ctx context.Context, tenantID string) (*audit.Stats, error) {
	entries, err := l.store.Query(ctx, audit.Filter{TenantID: tenantID})
	if err != nil {
		return nil, err
	}

	stats := &audit.Stats{
		ByResult: make(map[string]int64),
		ByActor:  make(map[string]int64),
		ByAction: make(map[string]int64),
	}
	for _, e := range entries {
		stats.Total++
		stats.ByResult[e.Result]++
		stats.ByActor[e.ActorID]++
		stats.ByAction[e.Action]++
	}
	return stats, nil
}

// Timeline groups matching entries into fixed-size time windows and
// counts occurrences per window. Buckets are returned in ascending
// order of window start; empty windows are omitted.
func (l *AuditLogger) Timeline(ctx context.Context, filter audit.TimelineFilter) ([]audit.TimelineBucket, error) {
	entries, err := l.store.Query(ctx, audit.Filter{
		TenantID: filter.TenantID,
		ActorID:  filter.ActorID,
		From:     filter.From,
		To:       filter.To,
	})
	if err != nil {
		return nil, err
	}

	window := time.Duration(filter.BucketMinutes) * time.Minute
	if window <= 0 {
		window = time.Hour
	}

	counts := make(map[time.Time]int64)
	for _, e := range entries {
		counts[e.Timestamp.Truncate(window)]++
	}

	buckets := make([]audit.TimelineBucket, 0, len(counts))
	for start, count := range counts {
		buckets = append(buckets, audit.TimelineBucket{Start: start, Count: count})
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Start.Before(buckets[j].Start)
	})
	return buckets, nil
}

// Export serializes matching entries as newline-delimited JSON, oldest
// first, for replay into external systems.
func (l *AuditLogger) Export(ctx context.Context, filter audit.Filter) (string, error) {
	entries, err := l.store.Query(ctx, filter)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	// Query returns newest first; export oldest first.
	for i := len(entries) - 1; i >= 0; i-- {
		line, err := json.Marshal(entries[i])
		if err != nil {
			return "", err
		}
		sb.Write(line)
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}
