package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/eventbus/dlq"
	"github.com/xraph/eventbus/id"
)

// PushDLQ stores an entry with twice the event expiry and pushes its ID
// onto the DLQ index, trimming the index to the configured bound.
func (s *Store) PushDLQ(ctx context.Context, entry *dlq.Entry) error {
	data, err := s.codec.Marshal(entry)
	if err != nil {
		return fmt.Errorf("eventbus/redis: encode dlq entry: %w", err)
	}

	eID := entry.ID.String()
	allKey := s.keys.dlqAll()
	ttl := 2 * s.ttl

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.keys.dlq(eID), data, ttl)
	pipe.LPush(ctx, allKey, eID)
	if s.dlqMax > 0 {
		pipe.LTrim(ctx, allKey, 0, int64(s.dlqMax)-1)
	}
	pipe.Expire(ctx, allKey, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("eventbus/redis: push dlq: %w", err)
	}
	return nil
}

// ListDLQ returns DLQ entries newest first, skipping expired ones.
func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	start := int64(opts.Offset)
	stop := int64(-1)
	if opts.Limit > 0 {
		stop = start + int64(opts.Limit) - 1
	}

	ids, err := s.client.LRange(ctx, s.keys.dlqAll(), start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("eventbus/redis: list dlq: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*goredis.StringCmd, len(ids))
	for i, eID := range ids {
		cmds[i] = pipe.Get(ctx, s.keys.dlq(eID))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("eventbus/redis: list dlq get: %w", err)
	}

	entries := make([]*dlq.Entry, 0, len(ids))
	for i, cmd := range cmds {
		data, getErr := cmd.Bytes()
		if getErr != nil {
			continue
		}
		var e dlq.Entry
		if decErr := s.codec.Unmarshal(data, &e); decErr != nil {
			s.logger.Warn("skipping undecodable dlq entry", "dlq_id", ids[i], "error", decErr)
			continue
		}
		entries = append(entries, &e)
	}
	return entries, nil
}

// RemoveDLQ deletes an entry and its index reference.
func (s *Store) RemoveDLQ(ctx context.Context, entryID id.DLQID) error {
	eID := entryID.String()

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.keys.dlq(eID))
	pipe.LRem(ctx, s.keys.dlqAll(), 0, eID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("eventbus/redis: remove dlq: %w", err)
	}
	return nil
}

// CountDLQ returns the length of the DLQ index.
func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	count, err := s.client.LLen(ctx, s.keys.dlqAll()).Result()
	if err != nil {
		return 0, fmt.Errorf("eventbus/redis: count dlq: %w", err)
	}
	return count, nil
}
