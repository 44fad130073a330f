package dlq

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/xraph/eventbus/event"
)

// Queue is the bounded, FIFO-evicting dead letter queue. It is safe for
// concurrent use.
type Queue struct {
	mu      sync.Mutex
	entries []*Entry // oldest first
	max     int

	store  Store
	logger *slog.Logger
}

// NewQueue creates a queue holding at most maxSize entries. A nil store
// keeps the queue purely in memory.
func NewQueue(maxSize int, store Store, logger *slog.Logger) *Queue {
	if maxSize <= 0 {
		maxSize = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		max:    maxSize,
		store:  store,
		logger: logger,
	}
}

// Push records a terminal failure. When the queue is full the oldest entry
// is evicted and removed from the store.
func (q *Queue) Push(ctx context.Context, evt *event.Event, meta *event.Metadata, cause error) *Entry {
	entry := NewEntry(evt, meta, cause)

	q.mu.Lock()
	var evicted *Entry
	if len(q.entries) >= q.max {
		evicted = q.entries[0]
		q.entries = slices.Delete(q.entries, 0, 1)
	}
	q.entries = append(q.entries, entry)
	q.mu.Unlock()

	if evicted != nil {
		q.logger.Warn("dlq full, evicting oldest entry",
			slog.String("dlq_id", evicted.ID.String()),
			slog.Int("max_size", q.max),
		)
		q.remove(ctx, evicted)
	}

	if q.store != nil {
		if err := q.store.PushDLQ(ctx, entry); err != nil {
			q.logger.Warn("dlq mirror write failed",
				slog.String("dlq_id", entry.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}
	return entry
}

// Entries returns a snapshot of the queue, oldest first.
func (q *Queue) Entries() []*Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.entries)
}

// Len returns the number of entries currently held.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Cap returns the maximum number of entries.
func (q *Queue) Cap() int { return q.max }

// Drain removes and returns every entry, oldest first.
func (q *Queue) Drain(ctx context.Context) []*Entry {
	q.mu.Lock()
	drained := q.entries
	q.entries = nil
	q.mu.Unlock()

	for _, e := range drained {
		q.remove(ctx, e)
	}
	return drained
}

// Load replaces the in-memory contents with what the store holds, keeping
// at most the newest Cap() entries.
func (q *Queue) Load(ctx context.Context) error {
	if q.store == nil {
		return nil
	}

	stored, err := q.store.ListDLQ(ctx, ListOpts{Limit: q.max})
	if err != nil {
		return err
	}
	slices.Reverse(stored)

	q.mu.Lock()
	q.entries = stored
	q.mu.Unlock()
	return nil
}

func (q *Queue) remove(ctx context.Context, e *Entry) {
	if q.store == nil {
		return
	}
	if err := q.store.RemoveDLQ(ctx, e.ID); err != nil {
		q.logger.Warn("dlq mirror remove failed",
			slog.String("dlq_id", e.ID.String()),
			slog.String("error", err.Error()),
		)
	}
}
