// Package memory provides a fully in-memory implementation of store.Store.
// Records expire like they do in Redis. It is intended for unit testing,
// development and single-instance deployments without Redis.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/xraph/eventbus"
	"github.com/xraph/eventbus/dlq"
	"github.com/xraph/eventbus/event"
	"github.com/xraph/eventbus/id"
)

// Ensure Store implements the subsystem stores at compile time.
// We can't import store here (import cycle), so we verify each subsystem.
var (
	_ event.Store = (*Store)(nil)
	_ dlq.Store   = (*Store)(nil)
)

type record struct {
	evt       *event.Event
	meta      *event.Metadata
	expiresAt time.Time
}

type dlqRecord struct {
	entry     *dlq.Entry
	expiresAt time.Time
}

// Store is an in-memory event and dead letter store.
// Safe for concurrent access.
type Store struct {
	mu sync.RWMutex

	records map[string]*record
	dlqs    map[string]*dlqRecord

	ttl          time.Duration
	defaultLimit int
	now          func() time.Time
}

// Option configures a memory Store.
type Option func(*Store)

// WithTTL sets the expiry for events and metadata. Dead letter entries
// live twice as long.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithDefaultLimit sets the limit used by list reads when limit <= 0.
func WithDefaultLimit(n int) Option {
	return func(s *Store) { s.defaultLimit = n }
}

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns a new empty Store.
func New(opts ...Option) *Store {
	def := eventbus.DefaultConfig()
	s := &Store{
		records:      make(map[string]*record),
		dlqs:         make(map[string]*dlqRecord),
		ttl:          def.EventTTL,
		defaultLimit: def.DefaultListLimit,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Event Store
// ──────────────────────────────────────────────────

// SaveEvent stores the event and a copy of its metadata.
func (m *Store) SaveEvent(_ context.Context, evt *event.Event, meta *event.Metadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[meta.ID.String()] = &record{
		evt:       evt,
		meta:      meta.Clone(),
		expiresAt: m.now().Add(m.ttl),
	}
	return nil
}

// UpdateEventMetadata replaces the stored metadata and refreshes its expiry.
func (m *Store) UpdateEventMetadata(_ context.Context, deliveryID id.DeliveryID, meta *event.Metadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.live(deliveryID.String())
	if !ok {
		return eventbus.ErrEventNotFound
	}
	rec.meta = meta.Clone()
	rec.expiresAt = m.now().Add(m.ttl)
	return nil
}

// GetEvent returns the envelope stored under deliveryID.
func (m *Store) GetEvent(_ context.Context, deliveryID id.DeliveryID) (*event.Envelope, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.live(deliveryID.String())
	if !ok {
		return nil, eventbus.ErrEventNotFound
	}
	return rec.envelope(), nil
}

// GetEventsByName lists deliveries of name, newest first.
func (m *Store) GetEventsByName(_ context.Context, name event.Name, limit int) ([]*event.Envelope, error) {
	return m.list(limit, func(meta *event.Metadata) bool { return meta.EventName == name }), nil
}

// GetPendingEvents lists Pending deliveries, newest first.
func (m *Store) GetPendingEvents(_ context.Context, limit int) ([]*event.Envelope, error) {
	return m.list(limit, func(meta *event.Metadata) bool { return meta.Status == event.StatusPending }), nil
}

// GetFailedEvents lists Failed deliveries, newest first.
func (m *Store) GetFailedEvents(_ context.Context, limit int) ([]*event.Envelope, error) {
	return m.list(limit, func(meta *event.Metadata) bool { return meta.Status == event.StatusFailed }), nil
}

// ClearOldEvents removes deliveries published before olderThan.
func (m *Store) ClearOldEvents(_ context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for key, rec := range m.records {
		if rec.meta.PublishedAt.Before(olderThan) {
			delete(m.records, key)
			n++
		}
	}
	return n, nil
}

// Stats counts live deliveries per status plus the DLQ size.
func (m *Store) Stats(_ context.Context) (event.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var st event.Stats
	now := m.now()
	for _, rec := range m.records {
		if !rec.expiresAt.After(now) {
			continue
		}
		switch rec.meta.Status {
		case event.StatusPending:
			st.Pending++
		case event.StatusProcessing:
			st.Processing++
		case event.StatusCompleted:
			st.Completed++
		case event.StatusFailed:
			st.Failed++
		}
	}
	for _, d := range m.dlqs {
		if d.expiresAt.After(now) {
			st.DeadLettered++
		}
	}
	return st, nil
}

// live must be called with m.mu held.
func (m *Store) live(key string) (*record, bool) {
	rec, ok := m.records[key]
	if !ok || !rec.expiresAt.After(m.now()) {
		return nil, false
	}
	return rec, true
}

func (m *Store) list(limit int, match func(*event.Metadata) bool) []*event.Envelope {
	if limit <= 0 {
		limit = m.defaultLimit
	}

	m.mu.RLock()
	now := m.now()
	matched := make([]*record, 0, len(m.records))
	for _, rec := range m.records {
		if rec.expiresAt.After(now) && match(rec.meta) {
			matched = append(matched, rec)
		}
	}
	m.mu.RUnlock()

	slices.SortFunc(matched, func(a, b *record) int {
		if c := b.meta.PublishedAt.Compare(a.meta.PublishedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.meta.ID.String(), a.meta.ID.String())
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]*event.Envelope, len(matched))
	for i, rec := range matched {
		out[i] = rec.envelope()
	}
	return out
}

func (r *record) envelope() *event.Envelope {
	return &event.Envelope{Event: r.evt, Metadata: r.meta.Clone()}
}

// ──────────────────────────────────────────────────
// DLQ Store
// ──────────────────────────────────────────────────

// PushDLQ adds an entry to the dead letter queue.
func (m *Store) PushDLQ(_ context.Context, entry *dlq.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dlqs[entry.ID.String()] = &dlqRecord{
		entry:     entry,
		expiresAt: m.now().Add(2 * m.ttl),
	}
	return nil
}

// ListDLQ returns live DLQ entries, newest first.
func (m *Store) ListDLQ(_ context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	result := make([]*dlq.Entry, 0, len(m.dlqs))
	for _, d := range m.dlqs {
		if d.expiresAt.After(now) {
			result = append(result, d.entry)
		}
	}

	slices.SortFunc(result, func(a, b *dlq.Entry) int {
		if c := b.FailedAt.Compare(a.FailedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID.String(), a.ID.String())
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return nil, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}

	return result, nil
}

// RemoveDLQ deletes a DLQ entry.
func (m *Store) RemoveDLQ(_ context.Context, entryID id.DLQID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.dlqs, entryID.String())
	return nil
}

// CountDLQ returns the number of live entries in the dead letter queue.
func (m *Store) CountDLQ(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	now := m.now()
	for _, d := range m.dlqs {
		if d.expiresAt.After(now) {
			n++
		}
	}
	return n, nil
}
