package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aegis-gate/aegis/internal/domain/audit"
)

// AsyncAppender wraps an audit.Store so that appends are buffered and
// flushed by a background worker in batches. It keeps durable audit
// writes off the permission-check hot path: Append never blocks longer
// than the configured send timeout, after which the entry is dropped
// and counted.
//
// Queries and purges pass through to the wrapped store directly.
type AsyncAppender struct {
	store  audit.Store
	logger *slog.Logger

	entryChan     chan audit.Entry
	wg            sync.WaitGroup
	batchSize     int
	flushInterval time.Duration
	sendTimeout   time.Duration
	dropCount     atomic.Int64
	dropCounter   prometheus.Counter

	startOnce sync.Once
	stopOnce  sync.Once
}

// AsyncOption configures AsyncAppender.
type AsyncOption func(*AsyncAppender)

// WithBatchSize sets the number of entries to batch before writing.
func WithBatchSize(size int) AsyncOption {
	return func(a *AsyncAppender) {
		a.batchSize = size
	}
}

// WithFlushInterval sets the interval at which pending entries flush.
func WithFlushInterval(interval time.Duration) AsyncOption {
	return func(a *AsyncAppender) {
		a.flushInterval = interval
	}
}

// WithChannelSize sets the buffer size of the append channel.
func WithChannelSize(size int) AsyncOption {
	return func(a *AsyncAppender) {
		a.entryChan = make(chan audit.Entry, size)
	}
}

// WithSendTimeout sets the backpressure timeout. Zero drops immediately
// when the channel is full.
func WithSendTimeout(timeout time.Duration) AsyncOption {
	return func(a *AsyncAppender) {
		a.sendTimeout = timeout
	}
}

// WithDropCounter reports dropped entries to a Prometheus counter.
func WithDropCounter(counter prometheus.Counter) AsyncOption {
	return func(a *AsyncAppender) {
		a.dropCounter = counter
	}
}

// NewAsyncAppender creates an appender over the given store. Start must
// be called before entries flow.
func NewAsyncAppender(store audit.Store, logger *slog.Logger, opts ...AsyncOption) *AsyncAppender {
	a := &AsyncAppender{
		store:         store,
		logger:        logger,
		entryChan:     make(chan audit.Entry, 1000),
		batchSize:     100,
		flushInterval: time.Second,
		sendTimeout:   100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start launches the background worker.
func (a *AsyncAppender) Start(ctx context.Context) {
	a.startOnce.Do(func() {
		a.wg.Add(1)
		go a.worker(ctx)
	})
}

// Append enqueues entries for background persistence. It never returns
// an error: entries that cannot be enqueued within the send timeout are
// dropped and counted.
func (a *AsyncAppender) Append(ctx context.Context, entries ...audit.Entry) error {
	for _, e := range entries {
		a.send(e)
	}
	return nil
}

// send enqueues one entry, applying backpressure up to sendTimeout.
func (a *AsyncAppender) send(e audit.Entry) {
	// Fast path: non-blocking send.
	select {
	case a.entryChan <- e:
		return
	default:
	}

	if a.sendTimeout <= 0 {
		a.recordDrop(e)
		return
	}

	select {
	case a.entryChan <- e:
	case <-time.After(a.sendTimeout):
		a.recordDrop(e)
	}
}

// recordDrop increments the counters and logs the drop.
func (a *AsyncAppender) recordDrop(e audit.Entry) {
	drops := a.dropCount.Add(1)
	if a.dropCounter != nil {
		a.dropCounter.Inc()
	}
	a.logger.Warn("audit entry dropped",
		"entry_id", e.ID,
		"tenant_id", e.TenantID,
		"total_drops", drops,
	)
}

// DroppedEntries returns the total number of dropped entries.
func (a *AsyncAppender) DroppedEntries() int64 {
	return a.dropCount.Load()
}

// Query passes through to the wrapped store. Entries still in the
// buffer are not yet visible; call Close (or Stop) to flush first.
func (a *AsyncAppender) Query(ctx context.Context, filter audit.Filter) ([]audit.Entry, error) {
	return a.store.Query(ctx, filter)
}

// PurgeBefore passes through to the wrapped store.
func (a *AsyncAppender) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return a.store.PurgeBefore(ctx, cutoff)
}

// Stop signals the worker to stop and waits for the final flush.
func (a *AsyncAppender) Stop() {
	a.stopOnce.Do(func() {
		close(a.entryChan)
		a.wg.Wait()
	})
}

// Close stops the worker and closes the wrapped store.
func (a *AsyncAppender) Close() error {
	a.Stop()
	return a.store.Close()
}

// worker collects entries and flushes them in batches.
func (a *AsyncAppender) worker(ctx context.Context) {
	defer a.wg.Done()

	batch := make([]audit.Entry, 0, a.batchSize)
	ticker := time.NewTicker(a.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case entry, ok := <-a.entryChan:
			if !ok {
				// Channel closed: final flush with a bounded deadline.
				if len(batch) > 0 {
					flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					a.flush(flushCtx, batch)
					cancel()
				}
				return
			}
			batch = append(batch, entry)
			if len(batch) >= a.batchSize {
				a.flush(ctx, batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				a.flush(ctx, batch)
				batch = batch[:0]
			}

		case <-ctx.Done():
			// Drain whatever is already buffered, then flush.
			for {
				select {
				case entry, ok := <-a.entryChan:
					if !ok {
						break
					}
					batch = append(batch, entry)
					continue
				default:
				}
				break
			}
			if len(batch) > 0 {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				a.flush(flushCtx, batch)
				cancel()
			}
			return
		}
	}
}

// flush writes a batch to the wrapped store. Errors are logged, not
// propagated: audit persistence must not fail permission checks.
func (a *AsyncAppender) flush(ctx context.Context, batch []audit.Entry) {
	if err := a.store.Append(ctx, batch...); err != nil {
		a.logger.Error("failed to write audit batch",
			"error", err,
			"count", len(batch),
		)
	}
}

// Compile-time interface verification.
var _ audit.Store = (*AsyncAppender)(nil)
