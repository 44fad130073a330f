// Package guard wraps a store.Store so backing-store failures never reach
// the dispatcher. A circuit breaker watches every call: failures are
// logged and turned into no-ops or empty results, and while the breaker
// is open calls are skipped without touching the backend.
package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/xraph/eventbus"
	"github.com/xraph/eventbus/dlq"
	"github.com/xraph/eventbus/event"
	"github.com/xraph/eventbus/id"
	"github.com/xraph/eventbus/store"
)

var _ store.Store = (*Store)(nil)

// Option configures the guard.
type Option func(*Store)

// WithLogger sets the logger used for degradation warnings.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithOpTimeout bounds each backend call. Defaults to 2s.
func WithOpTimeout(d time.Duration) Option {
	return func(s *Store) { s.opTimeout = d }
}

// WithBreaker sets how many consecutive failures open the breaker and how
// long it stays open before probing again. Defaults to 5 and 10s.
func WithBreaker(consecutiveFailures uint32, openFor time.Duration) Option {
	return func(s *Store) {
		s.tripAfter = consecutiveFailures
		s.openFor = openFor
	}
}

// Store is a degrading wrapper around another store.Store.
type Store struct {
	inner  store.Store
	cb     *gobreaker.CircuitBreaker
	logger *slog.Logger

	opTimeout time.Duration
	tripAfter uint32
	openFor   time.Duration
}

// New wraps inner. Wrapping an already guarded store returns it unchanged.
func New(inner store.Store, opts ...Option) *Store {
	if g, ok := inner.(*Store); ok {
		return g
	}

	s := &Store{
		inner:     inner,
		logger:    slog.Default(),
		opTimeout: 2 * time.Second,
		tripAfter: 5,
		openFor:   10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "eventbus-store",
		MaxRequests: 1,
		Timeout:     s.openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.tripAfter
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn("store circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, eventbus.ErrEventNotFound) || errors.Is(err, eventbus.ErrDLQNotFound)
		},
	})
	return s
}

// Inner returns the wrapped store.
func (s *Store) Inner() store.Store { return s.inner }

// Available reports whether the breaker currently lets calls through.
func (s *Store) Available() bool { return s.cb.State() != gobreaker.StateOpen }

// State returns the breaker state ("closed", "half-open" or "open").
func (s *Store) State() string { return s.cb.State().String() }

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Ping checks the wrapped store directly so health probes see the truth.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	return s.inner.Ping(ctx)
}

// Close closes the wrapped store.
func (s *Store) Close() error { return s.inner.Close() }

// ──────────────────────────────────────────────────
// Event Store
// ──────────────────────────────────────────────────

// SaveEvent persists the event or logs why it could not.
func (s *Store) SaveEvent(ctx context.Context, evt *event.Event, meta *event.Metadata) error {
	s.write(ctx, "save_event", meta.ID, func(ctx context.Context) error {
		return s.inner.SaveEvent(ctx, evt, meta)
	})
	return nil
}

// UpdateEventMetadata persists the metadata or logs why it could not.
func (s *Store) UpdateEventMetadata(ctx context.Context, deliveryID id.DeliveryID, meta *event.Metadata) error {
	s.write(ctx, "update_metadata", deliveryID, func(ctx context.Context) error {
		return s.inner.UpdateEventMetadata(ctx, deliveryID, meta)
	})
	return nil
}

// GetEvent returns ErrEventNotFound when the record is missing and also,
// wrapped together with ErrStoreUnavailable, when the backend failed.
func (s *Store) GetEvent(ctx context.Context, deliveryID id.DeliveryID) (*event.Envelope, error) {
	env, err := call(s, ctx, "get_event", func(ctx context.Context) (*event.Envelope, error) {
		return s.inner.GetEvent(ctx, deliveryID)
	})
	if err != nil {
		if errors.Is(err, eventbus.ErrEventNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", eventbus.ErrEventNotFound, eventbus.ErrStoreUnavailable)
	}
	return env, nil
}

// GetEventsByName returns an empty list when the backend failed.
func (s *Store) GetEventsByName(ctx context.Context, name event.Name, limit int) ([]*event.Envelope, error) {
	envs, _ := call(s, ctx, "get_events_by_name", func(ctx context.Context) ([]*event.Envelope, error) {
		return s.inner.GetEventsByName(ctx, name, limit)
	})
	return envs, nil
}

// GetPendingEvents returns an empty list when the backend failed.
func (s *Store) GetPendingEvents(ctx context.Context, limit int) ([]*event.Envelope, error) {
	envs, _ := call(s, ctx, "get_pending_events", func(ctx context.Context) ([]*event.Envelope, error) {
		return s.inner.GetPendingEvents(ctx, limit)
	})
	return envs, nil
}

// GetFailedEvents returns an empty list when the backend failed.
func (s *Store) GetFailedEvents(ctx context.Context, limit int) ([]*event.Envelope, error) {
	envs, _ := call(s, ctx, "get_failed_events", func(ctx context.Context) ([]*event.Envelope, error) {
		return s.inner.GetFailedEvents(ctx, limit)
	})
	return envs, nil
}

// ClearOldEvents is bounded by ctx only, since a sweep walks every record.
// When the backend fails partway it reports what was removed so far.
func (s *Store) ClearOldEvents(ctx context.Context, olderThan time.Time) (int, error) {
	var cleared int
	_, _ = callWithin(s, ctx, 0, "clear_old_events", func(ctx context.Context) (struct{}, error) {
		n, err := s.inner.ClearOldEvents(ctx, olderThan)
		cleared = n
		return struct{}{}, err
	})
	return cleared, nil
}

// Stats returns all-zero counts when the backend failed.
func (s *Store) Stats(ctx context.Context) (event.Stats, error) {
	st, _ := call(s, ctx, "stats", func(ctx context.Context) (event.Stats, error) {
		return s.inner.Stats(ctx)
	})
	return st, nil
}

// ──────────────────────────────────────────────────
// DLQ Store
// ──────────────────────────────────────────────────

// PushDLQ mirrors the entry or logs why it could not.
func (s *Store) PushDLQ(ctx context.Context, entry *dlq.Entry) error {
	s.write(ctx, "push_dlq", entry.ID, func(ctx context.Context) error {
		return s.inner.PushDLQ(ctx, entry)
	})
	return nil
}

// ListDLQ returns an empty list when the backend failed.
func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	entries, _ := call(s, ctx, "list_dlq", func(ctx context.Context) ([]*dlq.Entry, error) {
		return s.inner.ListDLQ(ctx, opts)
	})
	return entries, nil
}

// RemoveDLQ removes the entry or logs why it could not.
func (s *Store) RemoveDLQ(ctx context.Context, entryID id.DLQID) error {
	s.write(ctx, "remove_dlq", entryID, func(ctx context.Context) error {
		return s.inner.RemoveDLQ(ctx, entryID)
	})
	return nil
}

// CountDLQ returns zero when the backend failed.
func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	n, _ := call(s, ctx, "count_dlq", func(ctx context.Context) (int64, error) {
		return s.inner.CountDLQ(ctx)
	})
	return n, nil
}

// ── helpers ──

func (s *Store) write(ctx context.Context, op string, subject id.ID, fn func(context.Context) error) {
	_, err := call(s, ctx, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	if err != nil {
		s.logger.Debug("store write dropped",
			slog.String("op", op),
			slog.String("id", subject.String()),
		)
	}
}

// call runs fn through the breaker bounded by the op timeout. Failures
// other than not-found are logged; the zero value is returned with the
// error.
func call[T any](s *Store, ctx context.Context, op string, fn func(context.Context) (T, error)) (T, error) {
	return callWithin(s, ctx, s.opTimeout, op, fn)
}

// callWithin is call with an explicit timeout. Zero leaves ctx as is.
func callWithin[T any](s *Store, ctx context.Context, timeout time.Duration, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	res, err := s.cb.Execute(func() (any, error) {
		return fn(ctx)
	})
	if err != nil {
		switch {
		case errors.Is(err, eventbus.ErrEventNotFound), errors.Is(err, eventbus.ErrDLQNotFound):
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			s.logger.Debug("store unavailable, breaker open", slog.String("op", op))
		default:
			s.logger.Warn("store operation failed",
				slog.String("op", op),
				slog.String("error", err.Error()),
			)
		}
		return zero, err
	}

	v, _ := res.(T)
	return v, nil
}
