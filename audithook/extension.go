package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/eventbus/event"
	"github.com/xraph/eventbus/ext"
)

// Compile-time interface checks.
var (
	_ ext.Extension         = (*Extension)(nil)
	_ ext.EventPublished    = (*Extension)(nil)
	_ ext.EventCompleted    = (*Extension)(nil)
	_ ext.EventFailed       = (*Extension)(nil)
	_ ext.EventRetrying     = (*Extension)(nil)
	_ ext.EventDeadLettered = (*Extension)(nil)
	_ ext.SweepCompleted    = (*Extension)(nil)
)

// Extension bridges Eventbus delivery lifecycle events to an audit trail
// backend. Each lifecycle hook emits a structured audit event through the
// [Recorder].
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// ── Delivery lifecycle hooks ────────────────────────

// OnEventPublished implements ext.EventPublished.
func (e *Extension) OnEventPublished(ctx context.Context, evt *event.Event, meta *event.Metadata) error {
	return e.record(ctx, ActionEventPublished, SeverityInfo, OutcomeSuccess,
		ResourceDelivery, meta.ID.String(), CategoryDelivery, evt.TenantID, nil,
		"event_name", evt.Name.String(),
		"event_id", evt.ID.String(),
		"origin", meta.Origin,
	)
}

// OnEventCompleted implements ext.EventCompleted.
func (e *Extension) OnEventCompleted(ctx context.Context, evt *event.Event, meta *event.Metadata, elapsed time.Duration) error {
	return e.record(ctx, ActionEventCompleted, SeverityInfo, OutcomeSuccess,
		ResourceDelivery, meta.ID.String(), CategoryDelivery, evt.TenantID, nil,
		"event_name", evt.Name.String(),
		"retry_count", meta.RetryCount,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnEventFailed implements ext.EventFailed.
func (e *Extension) OnEventFailed(ctx context.Context, evt *event.Event, meta *event.Metadata, cause error) error {
	return e.record(ctx, ActionEventFailed, SeverityWarning, OutcomeFailure,
		ResourceDelivery, meta.ID.String(), CategoryDelivery, evt.TenantID, cause,
		"event_name", evt.Name.String(),
		"retry_count", meta.RetryCount,
	)
}

// OnEventRetrying implements ext.EventRetrying.
func (e *Extension) OnEventRetrying(ctx context.Context, evt *event.Event, meta *event.Metadata, attempt int, nextAt time.Time) error {
	return e.record(ctx, ActionEventRetrying, SeverityWarning, OutcomeFailure,
		ResourceDelivery, meta.ID.String(), CategoryDelivery, evt.TenantID, nil,
		"event_name", evt.Name.String(),
		"attempt", attempt,
		"next_attempt_at", nextAt.UTC().Format(time.RFC3339Nano),
	)
}

// OnEventDeadLettered implements ext.EventDeadLettered.
func (e *Extension) OnEventDeadLettered(ctx context.Context, evt *event.Event, meta *event.Metadata, cause error) error {
	return e.record(ctx, ActionEventDeadLettered, SeverityCritical, OutcomeFailure,
		ResourceDelivery, meta.ID.String(), CategoryDelivery, evt.TenantID, cause,
		"event_name", evt.Name.String(),
		"event_id", evt.ID.String(),
		"retry_count", meta.RetryCount,
	)
}

// ── Store hooks ─────────────────────────────────────

// OnSweepCompleted implements ext.SweepCompleted.
func (e *Extension) OnSweepCompleted(ctx context.Context, removed int, elapsed time.Duration) error {
	return e.record(ctx, ActionSweepCompleted, SeverityInfo, OutcomeSuccess,
		ResourceStore, "", CategoryStore, "", nil,
		"removed", removed,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// ── Internal helpers ────────────────────────────────

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category, tenantID string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	rec := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		TenantID:   tenantID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, rec); recErr != nil {
		e.logger.Warn("audithook: failed to record audit event",
			slog.String("action", action),
			slog.String("resource_id", resourceID),
			slog.String("error", recErr.Error()),
		)
	}
	return nil
}
