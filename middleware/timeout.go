package middleware

import (
	"context"
	"time"

	"github.com/xraph/eventbus/event"
)

// Timeout returns middleware that bounds each handler invocation by d.
// When the deadline passes the context is cancelled and the handler should
// return context.DeadlineExceeded. A non-positive d is a pass-through.
func Timeout(d time.Duration) Middleware {
	return func(ctx context.Context, _ *event.Event, _ *event.Metadata, next Handler) error {
		if d <= 0 {
			return next(ctx)
		}
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return next(ctx)
	}
}
