package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/eventbus/event"
)

// tracerName is the instrumentation scope name for eventbus tracing.
const tracerName = "github.com/xraph/eventbus"

// Tracing returns middleware that wraps each handler invocation in an
// OpenTelemetry span. If no TracerProvider is configured globally, the
// default noop tracer is used and this middleware becomes a pass-through.
//
// Span attributes include: eventbus.event.id, eventbus.event.name,
// eventbus.delivery.id, eventbus.retry_count, eventbus.tenant_id and
// eventbus.origin, the instance that published the delivery.
// On error, the span status is set to codes.Error with the error message.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(tracerName))
}

// TracingWithTracer returns tracing middleware using the provided tracer.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, evt *event.Event, meta *event.Metadata, next Handler) error {
		ctx, span := tracer.Start(ctx, "eventbus.handler.execute",
			trace.WithAttributes(
				attribute.String("eventbus.event.id", evt.ID.String()),
				attribute.String("eventbus.event.name", evt.Name.String()),
				attribute.String("eventbus.delivery.id", deliveryID(meta)),
				attribute.Int("eventbus.retry_count", retryCount(meta)),
				attribute.String("eventbus.tenant_id", evt.TenantID),
				attribute.String("eventbus.origin", origin(meta)),
			),
			trace.WithSpanKind(trace.SpanKindConsumer),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
