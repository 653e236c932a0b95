package audit

import (
	"context"
	"time"
)

// Store persists audit entries. Interface owned by the domain per
// hexagonal architecture; in-memory and sqlite adapters implement it.
//
// Entries are append-only: no operation mutates a stored entry, and the
// only removal path is PurgeBefore, an administrative retention call.
type Store interface {
	// Append stores entries in order.
	Append(ctx context.Context, entries ...Entry) error

	// Query returns entries matching the filter, most recent first.
	// Offset and Limit are applied after ordering, so repeated calls
	// with the same filter return identical results absent writes.
	Query(ctx context.Context, filter Filter) ([]Entry, error)

	// PurgeBefore deletes entries older than the cutoff and returns the
	// number removed. Administrative use only.
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Close releases resources.
	Close() error
}
