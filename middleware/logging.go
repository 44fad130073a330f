package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/eventbus/event"
)

// Logging returns middleware that logs each handler invocation at debug
// level and failures at warn level.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, evt *event.Event, meta *event.Metadata, next Handler) error {
		logger.Debug("handler started",
			slog.String("event_name", evt.Name.String()),
			slog.String("event_id", evt.ID.String()),
			slog.String("delivery_id", deliveryID(meta)),
			slog.Int("retry_count", retryCount(meta)),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Warn("handler failed",
				slog.String("event_name", evt.Name.String()),
				slog.String("delivery_id", deliveryID(meta)),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Debug("handler completed",
				slog.String("event_name", evt.Name.String()),
				slog.String("delivery_id", deliveryID(meta)),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
