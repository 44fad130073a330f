package event

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/xraph/eventbus"
)

// Bus is the simple, non-persistent, single-process event bus. Publish
// runs every handler for the event concurrently, waits for all of them,
// and logs individual failures instead of returning them. There is no
// metadata, retry, persistence or cross-instance fan-out.
type Bus struct {
	registry *Registry
	logger   *slog.Logger
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithBusLogger sets the logger used to report handler failures.
func WithBusLogger(l *slog.Logger) BusOption {
	return func(b *Bus) { b.logger = l }
}

// WithBusRegistry shares an existing registry with the bus.
func WithBusRegistry(r *Registry) BusOption {
	return func(b *Bus) { b.registry = r }
}

// NewBus creates a simple event bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		registry: NewRegistry(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Registry returns the registry handlers are added to.
func (b *Bus) Registry() *Registry { return b.registry }

// Publish delivers evt to every handler and returns once all have settled.
// Only a nil event is reported as an error.
func (b *Bus) Publish(ctx context.Context, evt *Event) error {
	if evt == nil {
		return eventbus.ErrNilEvent
	}

	handlers := b.registry.Handlers(evt.Name)
	if len(handlers) == 0 {
		b.logger.Debug("no handlers for event",
			slog.String("event_name", string(evt.Name)),
		)
		return nil
	}

	var wg sync.WaitGroup
	for i, h := range handlers {
		wg.Add(1)
		go func(idx int, fn HandlerFunc) {
			defer wg.Done()
			if err := runSafe(ctx, fn, evt); err != nil {
				b.logger.Warn("event handler failed",
					slog.String("event_name", string(evt.Name)),
					slog.String("event_id", evt.ID.String()),
					slog.Int("handler", idx),
					slog.String("error", err.Error()),
				)
			}
		}(i, h)
	}
	wg.Wait()
	return nil
}

func runSafe(ctx context.Context, fn HandlerFunc, evt *Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in handler: %v", r)
		}
	}()
	return fn(ctx, evt)
}
