// Package memory provides an in-process distribution channel. A Hub joins
// several channels the way a shared Redis server joins several processes,
// which lets multiple engines run side by side in one test binary.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/xraph/eventbus"
	"github.com/xraph/eventbus/broadcast"
	"github.com/xraph/eventbus/codec"
	"github.com/xraph/eventbus/event"
)

var _ broadcast.Channel = (*Channel)(nil)

// DefaultBufferSize is the default per-channel inbox size.
const DefaultBufferSize = 256

// ErrHubDown is returned by Publish while the hub simulates an outage.
var ErrHubDown = errors.New("eventbus/memory: hub unreachable")

// Hub fans published messages out to every member channel, the publisher
// included. Messages pass through the codec so receivers get their own
// copy, as they would over the wire.
type Hub struct {
	mu      sync.RWMutex
	members map[*Channel]struct{}
	codec   codec.Codec
	buffer  int
	down    atomic.Bool

	totalPublished atomic.Int64
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithCodec sets the serialization used between members.
func WithCodec(c codec.Codec) HubOption {
	return func(h *Hub) { h.codec = c }
}

// WithBufferSize sets the per-channel inbox size.
func WithBufferSize(size int) HubOption {
	return func(h *Hub) { h.buffer = size }
}

// NewHub creates an empty hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		members: make(map[*Channel]struct{}),
		codec:   codec.JSON{},
		buffer:  DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetDown simulates the hub becoming unreachable (true) or recovering.
func (h *Hub) SetDown(down bool) { h.down.Store(down) }

// Published returns the number of messages accepted by the hub.
func (h *Hub) Published() int64 { return h.totalPublished.Load() }

// Inject delivers raw bytes to every subscribed member, bypassing the
// codec on the sending side.
func (h *Hub) Inject(ctx context.Context, data []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for m := range h.members {
		if err := m.enqueue(ctx, data); err != nil {
			return err
		}
	}
	return nil
}

// Channel returns a new member channel attached to the hub.
func (h *Hub) Channel(logger *slog.Logger) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{hub: h, logger: logger}
}

func (h *Hub) join(c *Channel) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.members[c] = struct{}{}
}

func (h *Hub) leave(c *Channel) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.members, c)
}

// Channel is one member of a Hub.
type Channel struct {
	hub    *Hub
	logger *slog.Logger

	mu     sync.Mutex
	inbox  chan []byte
	done   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// Publish encodes env and delivers it to every member's inbox.
func (c *Channel) Publish(ctx context.Context, env *event.Envelope) error {
	if c.hub.down.Load() {
		return ErrHubDown
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return eventbus.ErrChannelClosed
	}

	data, err := c.hub.codec.Marshal(env)
	if err != nil {
		return fmt.Errorf("eventbus/memory: encode envelope: %w", err)
	}
	if err := c.hub.Inject(ctx, data); err != nil {
		return err
	}
	c.hub.totalPublished.Add(1)
	return nil
}

// Subscribe joins the hub and starts the receive loop.
func (c *Channel) Subscribe(ctx context.Context, fn broadcast.Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return eventbus.ErrChannelClosed
	}
	if c.inbox != nil {
		return errors.New("eventbus/memory: already subscribed")
	}

	c.inbox = make(chan []byte, c.hub.buffer)
	c.done = make(chan struct{})
	c.hub.join(c)

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	c.wg.Add(1)
	go c.receive(loopCtx, fn)
	return nil
}

func (c *Channel) enqueue(ctx context.Context, data []byte) error {
	select {
	case c.inbox <- data:
		return nil
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Channel) receive(ctx context.Context, fn broadcast.Handler) {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case data := <-c.inbox:
			var env event.Envelope
			if err := c.hub.codec.Unmarshal(data, &env); err != nil || env.Event == nil || env.Metadata == nil {
				if err == nil {
					err = eventbus.ErrMalformedEnvelope
				}
				c.logger.Warn("dropping malformed broadcast", slog.String("error", err.Error()))
				continue
			}
			fn(ctx, &env)
		}
	}
}

// Connected reports whether the channel is subscribed and the hub is up.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inbox != nil && !c.closed && !c.hub.down.Load()
}

// Close leaves the hub, cancels the context handed to the handler and
// waits for the receive loop to exit.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	subscribed := c.inbox != nil
	cancel := c.cancel
	c.mu.Unlock()

	if subscribed {
		close(c.done)
		cancel()
		c.hub.leave(c)
		c.wg.Wait()
	}
	return nil
}
