package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/eventbus"
	"github.com/xraph/eventbus/event"
	"github.com/xraph/eventbus/id"
)

// sweepBatch is the SCAN COUNT hint used by ClearOldEvents.
const sweepBatch = 500

// SaveEvent writes the event body and metadata with a shared expiry and
// pushes the delivery ID onto the name and status indexes.
func (s *Store) SaveEvent(ctx context.Context, evt *event.Event, meta *event.Metadata) error {
	evtData, err := s.codec.Marshal(evt)
	if err != nil {
		return fmt.Errorf("eventbus/redis: encode event: %w", err)
	}
	metaData, err := s.codec.Marshal(meta)
	if err != nil {
		return fmt.Errorf("eventbus/redis: encode metadata: %w", err)
	}

	dID := meta.ID.String()
	nameKey := s.keys.byName(meta.EventName)
	statusKey := s.keys.byStatus(meta.Status)

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.keys.event(dID), evtData, s.ttl)
	pipe.Set(ctx, s.keys.meta(dID), metaData, s.ttl)
	pipe.LPush(ctx, nameKey, dID)
	pipe.Expire(ctx, nameKey, s.ttl)
	pipe.LPush(ctx, statusKey, dID)
	pipe.Expire(ctx, statusKey, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("eventbus/redis: save event: %w", err)
	}
	return nil
}

// UpdateEventMetadata rewrites the metadata record and refreshes the
// expiry of both keys. When the status changed, the delivery ID moves from
// the old status list to the new one in the same transaction.
func (s *Store) UpdateEventMetadata(ctx context.Context, deliveryID id.DeliveryID, meta *event.Metadata) error {
	dID := deliveryID.String()

	prev, err := s.getMeta(ctx, dID)
	if err != nil {
		return err
	}

	data, err := s.codec.Marshal(meta)
	if err != nil {
		return fmt.Errorf("eventbus/redis: encode metadata: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.keys.meta(dID), data, s.ttl)
	pipe.Expire(ctx, s.keys.event(dID), s.ttl)
	if prev.Status != meta.Status {
		newKey := s.keys.byStatus(meta.Status)
		pipe.LRem(ctx, s.keys.byStatus(prev.Status), 0, dID)
		pipe.LPush(ctx, newKey, dID)
		pipe.Expire(ctx, newKey, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("eventbus/redis: update metadata: %w", err)
	}
	return nil
}

// GetEvent returns the envelope stored under deliveryID.
func (s *Store) GetEvent(ctx context.Context, deliveryID id.DeliveryID) (*event.Envelope, error) {
	envs, err := s.load(ctx, []string{deliveryID.String()}, "")
	if err != nil {
		return nil, err
	}
	if len(envs) == 0 {
		return nil, eventbus.ErrEventNotFound
	}
	return envs[0], nil
}

// GetEventsByName lists deliveries of name, newest first.
func (s *Store) GetEventsByName(ctx context.Context, name event.Name, limit int) ([]*event.Envelope, error) {
	return s.listIndex(ctx, s.keys.byName(name), limit, "")
}

// GetPendingEvents lists Pending deliveries, newest first.
func (s *Store) GetPendingEvents(ctx context.Context, limit int) ([]*event.Envelope, error) {
	return s.listIndex(ctx, s.keys.byStatus(event.StatusPending), limit, event.StatusPending)
}

// GetFailedEvents lists Failed deliveries, newest first.
func (s *Store) GetFailedEvents(ctx context.Context, limit int) ([]*event.Envelope, error) {
	return s.listIndex(ctx, s.keys.byStatus(event.StatusFailed), limit, event.StatusFailed)
}

// ClearOldEvents scans every metadata key and deletes deliveries published
// before olderThan together with their index entries. Each SCAN batch is
// read with one MGET and deleted in one transaction; on error the count
// covers the batches already committed.
func (s *Store) ClearOldEvents(ctx context.Context, olderThan time.Time) (int, error) {
	var (
		cursor  uint64
		cleared int
	)
	for {
		metaKeys, next, err := s.client.Scan(ctx, cursor, s.keys.metaPattern(), sweepBatch).Result()
		if err != nil {
			return cleared, fmt.Errorf("eventbus/redis: clear scan: %w", err)
		}

		n, err := s.clearBatch(ctx, metaKeys, olderThan)
		if err != nil {
			return cleared, err
		}
		cleared += n

		cursor = next
		if cursor == 0 {
			return cleared, nil
		}
	}
}

func (s *Store) clearBatch(ctx context.Context, metaKeys []string, olderThan time.Time) (int, error) {
	if len(metaKeys) == 0 {
		return 0, nil
	}
	values, err := s.client.MGet(ctx, metaKeys...).Result()
	if err != nil {
		return 0, fmt.Errorf("eventbus/redis: clear read: %w", err)
	}

	pipe := s.client.TxPipeline()
	n := 0
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue // expired between SCAN and MGET
		}
		var meta event.Metadata
		if decErr := s.codec.Unmarshal([]byte(raw), &meta); decErr != nil {
			s.logger.Warn("skipping undecodable metadata", "key", metaKeys[i], "error", decErr)
			continue
		}
		if !meta.PublishedAt.Before(olderThan) {
			continue
		}

		dID := meta.ID.String()
		pipe.Del(ctx, s.keys.event(dID), s.keys.meta(dID))
		pipe.LRem(ctx, s.keys.byName(meta.EventName), 0, dID)
		pipe.LRem(ctx, s.keys.byStatus(meta.Status), 0, dID)
		n++
	}
	if n == 0 {
		return 0, nil
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("eventbus/redis: clear delete: %w", err)
	}
	return n, nil
}

// Stats reads per-status and DLQ counts from the index list lengths.
func (s *Store) Stats(ctx context.Context) (event.Stats, error) {
	pipe := s.client.Pipeline()
	pending := pipe.LLen(ctx, s.keys.byStatus(event.StatusPending))
	processing := pipe.LLen(ctx, s.keys.byStatus(event.StatusProcessing))
	completed := pipe.LLen(ctx, s.keys.byStatus(event.StatusCompleted))
	failed := pipe.LLen(ctx, s.keys.byStatus(event.StatusFailed))
	dead := pipe.LLen(ctx, s.keys.dlqAll())
	if _, err := pipe.Exec(ctx); err != nil {
		return event.Stats{}, fmt.Errorf("eventbus/redis: stats: %w", err)
	}
	return event.Stats{
		Pending:      pending.Val(),
		Processing:   processing.Val(),
		Completed:    completed.Val(),
		Failed:       failed.Val(),
		DeadLettered: dead.Val(),
	}, nil
}

// ── helpers ──

func (s *Store) getMeta(ctx context.Context, dID string) (*event.Metadata, error) {
	data, err := s.client.Get(ctx, s.keys.meta(dID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, eventbus.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("eventbus/redis: get metadata: %w", err)
	}
	var meta event.Metadata
	if err := s.codec.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("eventbus/redis: decode metadata: %w", err)
	}
	return &meta, nil
}

func (s *Store) listIndex(ctx context.Context, key string, limit int, status event.Status) ([]*event.Envelope, error) {
	ids, err := s.client.LRange(ctx, key, 0, int64(s.limit(limit))-1).Result()
	if err != nil {
		return nil, fmt.Errorf("eventbus/redis: list %s: %w", key, err)
	}
	return s.load(ctx, ids, status)
}

// load fetches envelopes for ids in order, skipping expired records and,
// when status is set, records whose metadata disagrees with the index.
func (s *Store) load(ctx context.Context, ids []string, status event.Status) ([]*event.Envelope, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	evtCmds := make([]*goredis.StringCmd, len(ids))
	metaCmds := make([]*goredis.StringCmd, len(ids))
	for i, dID := range ids {
		evtCmds[i] = pipe.Get(ctx, s.keys.event(dID))
		metaCmds[i] = pipe.Get(ctx, s.keys.meta(dID))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("eventbus/redis: load events: %w", err)
	}

	out := make([]*event.Envelope, 0, len(ids))
	for i := range ids {
		evtData, evtErr := evtCmds[i].Bytes()
		metaData, metaErr := metaCmds[i].Bytes()
		if evtErr != nil || metaErr != nil {
			continue
		}

		var env event.Envelope
		env.Event = new(event.Event)
		env.Metadata = new(event.Metadata)
		if err := s.codec.Unmarshal(evtData, env.Event); err != nil {
			s.logger.Warn("skipping undecodable event", "delivery_id", ids[i], "error", err)
			continue
		}
		if err := s.codec.Unmarshal(metaData, env.Metadata); err != nil {
			s.logger.Warn("skipping undecodable metadata", "delivery_id", ids[i], "error", err)
			continue
		}
		if status != "" && env.Metadata.Status != status {
			continue
		}
		out = append(out, &env)
	}
	return out, nil
}
