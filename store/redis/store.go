package redis

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/eventbus"
	"github.com/xraph/eventbus/codec"
	"github.com/xraph/eventbus/dlq"
	"github.com/xraph/eventbus/event"
)

// Compile-time interface checks.
var (
	_ dlq.Store   = (*Store)(nil)
	_ event.Store = (*Store)(nil)
)

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithCodec sets the value serialization.
func WithCodec(c codec.Codec) Option {
	return func(s *Store) { s.codec = c }
}

// WithKeyPrefix namespaces every key. Defaults to "eventbus:".
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) { s.keys = keys{prefix: prefix} }
}

// WithTTL sets the expiry for events and metadata. Dead letter entries
// are kept for twice as long.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithDefaultLimit sets the limit used by list reads when limit <= 0.
func WithDefaultLimit(n int) Option {
	return func(s *Store) { s.defaultLimit = n }
}

// WithDLQMaxSize bounds the dead letter index list.
func WithDLQMaxSize(n int) Option {
	return func(s *Store) { s.dlqMax = n }
}

// Store implements the composite store.Store interface backed by Redis.
type Store struct {
	client redis.Cmdable
	logger *slog.Logger
	codec  codec.Codec
	keys   keys

	ttl          time.Duration
	defaultLimit int
	dlqMax       int
}

// New creates a new Redis-backed store. The caller owns the Redis client
// lifecycle.
func New(client redis.Cmdable, opts ...Option) *Store {
	def := eventbus.DefaultConfig()
	s := &Store{
		client:       client,
		logger:       slog.Default(),
		codec:        codec.Get(def.Codec),
		keys:         keys{prefix: def.KeyPrefix},
		ttl:          def.EventTTL,
		defaultLimit: def.DefaultListLimit,
		dlqMax:       def.DLQMaxSize,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Client returns the underlying Redis client.
func (s *Store) Client() redis.Cmdable { return s.client }

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close is a no-op. The caller owns the Redis client lifecycle.
func (s *Store) Close() error { return nil }

func (s *Store) limit(n int) int {
	if n <= 0 {
		return s.defaultLimit
	}
	return n
}
