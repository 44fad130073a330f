package dlq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xraph/eventbus/event"
)

// PublishFunc re-publishes an event as a fresh delivery.
type PublishFunc func(ctx context.Context, evt *event.Event) error

// Replay drains the queue and re-publishes every entry's event through
// publish. Entries whose re-publish fails are pushed back with their
// original metadata. It returns how many events were re-published.
func (q *Queue) Replay(ctx context.Context, publish PublishFunc) (int, error) {
	entries := q.Drain(ctx)

	var (
		replayed int
		errs     []error
	)
	for _, e := range entries {
		if err := publish(ctx, e.Event); err != nil {
			errs = append(errs, fmt.Errorf("replay %s: %w", e.ID, err))
			q.restore(ctx, e)
			continue
		}
		replayed++
	}
	return replayed, errors.Join(errs...)
}

// restore re-inserts an entry that could not be replayed. If the queue
// refilled meanwhile the entry is the oldest candidate, so it is dropped.
func (q *Queue) restore(ctx context.Context, e *Entry) {
	q.mu.Lock()
	if len(q.entries) >= q.max {
		q.mu.Unlock()
		q.logger.Warn("dlq full, dropping entry that failed to replay",
			slog.String("dlq_id", e.ID.String()),
			slog.String("event_name", e.Event.Name.String()),
			slog.String("delivery_id", e.Metadata.ID.String()),
			slog.Int("max_size", q.max),
		)
		return
	}
	q.entries = append(q.entries, e)
	q.mu.Unlock()

	if q.store != nil {
		if err := q.store.PushDLQ(ctx, e); err != nil {
			q.logger.Warn("dlq mirror write failed",
				slog.String("dlq_id", e.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}
