package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/xraph/eventbus/event"
)

// Recover returns middleware that recovers from panics in the handler chain.
// Panics are converted to errors and logged with a stack trace, so one
// panicking handler never takes down the worker or its sibling handlers.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, evt *event.Event, meta *event.Metadata, next Handler) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("event handler panicked",
					slog.String("event_name", evt.Name.String()),
					slog.String("event_id", evt.ID.String()),
					slog.String("delivery_id", deliveryID(meta)),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
				retErr = fmt.Errorf("panic in handler for %s: %v", evt.Name, r)
			}
		}()
		return next(ctx)
	}
}
