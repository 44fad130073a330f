// Package redis implements broadcast.Channel on Redis PUBLISH/SUBSCRIBE.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/eventbus"
	"github.com/xraph/eventbus/broadcast"
	"github.com/xraph/eventbus/codec"
	"github.com/xraph/eventbus/event"
)

var _ broadcast.Channel = (*Channel)(nil)

// Option configures a Channel.
type Option func(*Channel)

// WithName sets the channel name. Defaults to "eventbus:events".
func WithName(name string) Option {
	return func(c *Channel) { c.name = name }
}

// WithCodec sets the wire serialization. Defaults to JSON.
func WithCodec(cd codec.Codec) Option {
	return func(c *Channel) { c.codec = cd }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Channel) { c.logger = l }
}

// Channel is a Redis pub/sub distribution channel. The caller owns the
// Redis client lifecycle.
type Channel struct {
	client goredis.UniversalClient
	name   string
	codec  codec.Codec
	logger *slog.Logger

	mu        sync.Mutex
	sub       *goredis.PubSub
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closed    bool
	connected atomic.Bool
}

// New creates a channel over client.
func New(client goredis.UniversalClient, opts ...Option) *Channel {
	def := eventbus.DefaultConfig()
	c := &Channel{
		client: client,
		name:   def.ChannelName,
		codec:  codec.Get(def.Codec),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the Redis channel name.
func (c *Channel) Name() string { return c.name }

// Publish encodes env and publishes it on the channel.
func (c *Channel) Publish(ctx context.Context, env *event.Envelope) error {
	data, err := c.codec.Marshal(env)
	if err != nil {
		return fmt.Errorf("eventbus/redis: encode envelope: %w", err)
	}
	if err := c.client.Publish(ctx, c.name, data).Err(); err != nil {
		c.connected.Store(false)
		return fmt.Errorf("eventbus/redis: publish: %w", err)
	}
	c.mu.Lock()
	subscribed := c.sub != nil && !c.closed
	c.mu.Unlock()
	c.connected.Store(subscribed)
	return nil
}

// Subscribe confirms the subscription and starts the receive loop.
func (c *Channel) Subscribe(ctx context.Context, fn broadcast.Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return eventbus.ErrChannelClosed
	}
	if c.sub != nil {
		return errors.New("eventbus/redis: already subscribed")
	}

	sub := c.client.Subscribe(ctx, c.name)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("eventbus/redis: subscribe %s: %w", c.name, err)
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.sub = sub
	c.cancel = cancel
	c.connected.Store(true)

	c.wg.Add(1)
	go c.receive(loopCtx, sub.Channel(), fn)
	return nil
}

func (c *Channel) receive(ctx context.Context, msgs <-chan *goredis.Message, fn broadcast.Handler) {
	defer c.wg.Done()
	for msg := range msgs {
		var env event.Envelope
		if err := c.codec.Unmarshal([]byte(msg.Payload), &env); err != nil || env.Event == nil || env.Metadata == nil {
			if err == nil {
				err = eventbus.ErrMalformedEnvelope
			}
			c.logger.Warn("dropping malformed broadcast",
				slog.String("channel", msg.Channel),
				slog.String("error", err.Error()),
			)
			continue
		}
		fn(ctx, &env)
	}
}

// Connected reports whether the subscription is live and the last publish
// succeeded.
func (c *Channel) Connected() bool { return c.connected.Load() }

// Close unsubscribes and waits for the receive loop to finish.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	sub, cancel := c.sub, c.cancel
	c.mu.Unlock()

	c.connected.Store(false)
	var err error
	if sub != nil {
		err = sub.Close()
		cancel()
	}
	c.wg.Wait()
	return err
}
