package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/eventbus/event"
	"github.com/xraph/eventbus/ext"
)

// meterName is the instrumentation scope name for lifecycle metrics.
const meterName = "github.com/xraph/eventbus/observability"

// Compile-time interface checks.
var (
	_ ext.Extension         = (*MetricsExtension)(nil)
	_ ext.EventPublished    = (*MetricsExtension)(nil)
	_ ext.EventReceived     = (*MetricsExtension)(nil)
	_ ext.EventCompleted    = (*MetricsExtension)(nil)
	_ ext.EventFailed       = (*MetricsExtension)(nil)
	_ ext.EventRetrying     = (*MetricsExtension)(nil)
	_ ext.EventDeadLettered = (*MetricsExtension)(nil)
	_ ext.SweepCompleted    = (*MetricsExtension)(nil)
)

// MetricsExtension records system-wide delivery metrics through an OTel
// Meter. Register it as an Eventbus extension to track publish rates,
// completion latency, failure and retry counts, dead-lettered events and
// sweep results. Every instrument carries an event_name attribute except
// the sweep counter.
type MetricsExtension struct {
	Published    metric.Int64Counter
	Received     metric.Int64Counter
	Completed    metric.Int64Counter
	Failed       metric.Int64Counter
	Retried      metric.Int64Counter
	DeadLettered metric.Int64Counter
	Swept        metric.Int64Counter
	Latency      metric.Float64Histogram
}

// NewMetricsExtension creates a MetricsExtension using the global
// MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the
// provided meter. Instrument creation errors fall back to the noop
// instruments the OTel API returns alongside them.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	counter := func(name, desc string) metric.Int64Counter {
		c, _ := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit("{event}"))
		return c
	}
	latency, _ := meter.Float64Histogram("eventbus.event.latency",
		metric.WithDescription("Time from publish to completed delivery in seconds"),
		metric.WithUnit("s"),
	)
	return &MetricsExtension{
		Published:    counter("eventbus.event.published", "Events published by this instance"),
		Received:     counter("eventbus.event.received", "Events accepted from other instances"),
		Completed:    counter("eventbus.event.completed", "Deliveries where every handler succeeded"),
		Failed:       counter("eventbus.event.failed", "Failed delivery attempts"),
		Retried:      counter("eventbus.event.retried", "Failed deliveries scheduled for retry"),
		DeadLettered: counter("eventbus.event.dead_lettered", "Deliveries moved to the dead letter queue"),
		Swept:        counter("eventbus.store.swept", "Stored events removed by the old-event sweep"),
		Latency:      latency,
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ── Delivery lifecycle hooks ────────────────────────

// OnEventPublished implements ext.EventPublished.
func (m *MetricsExtension) OnEventPublished(ctx context.Context, evt *event.Event, _ *event.Metadata) error {
	m.Published.Add(ctx, 1, nameAttr(evt))
	return nil
}

// OnEventReceived implements ext.EventReceived.
func (m *MetricsExtension) OnEventReceived(ctx context.Context, evt *event.Event, _ *event.Metadata) error {
	m.Received.Add(ctx, 1, nameAttr(evt))
	return nil
}

// OnEventCompleted implements ext.EventCompleted. Latency is measured from
// the attempt's publish time, so it includes queueing and retry delays.
func (m *MetricsExtension) OnEventCompleted(ctx context.Context, evt *event.Event, meta *event.Metadata, _ time.Duration) error {
	m.Completed.Add(ctx, 1, nameAttr(evt))
	if meta != nil && !meta.PublishedAt.IsZero() {
		m.Latency.Record(ctx, time.Since(meta.PublishedAt).Seconds(), nameAttr(evt))
	}
	return nil
}

// OnEventFailed implements ext.EventFailed.
func (m *MetricsExtension) OnEventFailed(ctx context.Context, evt *event.Event, _ *event.Metadata, _ error) error {
	m.Failed.Add(ctx, 1, nameAttr(evt))
	return nil
}

// OnEventRetrying implements ext.EventRetrying.
func (m *MetricsExtension) OnEventRetrying(ctx context.Context, evt *event.Event, _ *event.Metadata, _ int, _ time.Time) error {
	m.Retried.Add(ctx, 1, nameAttr(evt))
	return nil
}

// OnEventDeadLettered implements ext.EventDeadLettered.
func (m *MetricsExtension) OnEventDeadLettered(ctx context.Context, evt *event.Event, _ *event.Metadata, _ error) error {
	m.DeadLettered.Add(ctx, 1, nameAttr(evt))
	return nil
}

// ── Other hooks ─────────────────────────────────────

// OnSweepCompleted implements ext.SweepCompleted.
func (m *MetricsExtension) OnSweepCompleted(ctx context.Context, removed int, _ time.Duration) error {
	m.Swept.Add(ctx, int64(removed))
	return nil
}

func nameAttr(evt *event.Event) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("event_name", evt.Name.String()))
}
