package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/eventbus/event"
)

// meterName is the instrumentation scope name for eventbus metrics.
const meterName = "github.com/xraph/eventbus"

// Metrics returns middleware that records per-handler metrics using the
// global OTel MeterProvider.
//
// Both instruments carry event_name, status ("ok" or "error") and retry,
// which is true for any attempt after the first:
//   - eventbus.handler.duration (Float64Histogram): handler time in seconds
//   - eventbus.handler.executions (Int64Counter): handler invocations
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(meterName))
}

// MetricsWithMeter returns metrics middleware using the provided meter.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// On error the OTel API returns noop instruments.
	duration, _ := meter.Float64Histogram(
		"eventbus.handler.duration",
		metric.WithDescription("Duration of event handler execution in seconds"),
		metric.WithUnit("s"),
	)
	executions, _ := meter.Int64Counter(
		"eventbus.handler.executions",
		metric.WithDescription("Total number of event handler executions"),
		metric.WithUnit("{execution}"),
	)

	return func(ctx context.Context, evt *event.Event, meta *event.Metadata, next Handler) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start).Seconds()

		status := "ok"
		if err != nil {
			status = "error"
		}

		attrs := metric.WithAttributes(
			attribute.String("event_name", evt.Name.String()),
			attribute.String("status", status),
			attribute.Bool("retry", retryCount(meta) > 0),
		)
		duration.Record(ctx, elapsed, attrs)
		executions.Add(ctx, 1, attrs)

		return err
	}
}
