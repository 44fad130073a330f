// Package ext defines the extension system for Eventbus.
// Extensions are notified of delivery lifecycle events (event published,
// completed, failed, dead-lettered, etc.) and can react to them: logging,
// metrics, audit trails.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package ext

import (
	"context"
	"time"

	"github.com/xraph/eventbus/event"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Delivery lifecycle hooks
// ──────────────────────────────────────────────────

// EventPublished is called after an event is persisted, broadcast and
// queued for local delivery.
type EventPublished interface {
	OnEventPublished(ctx context.Context, evt *event.Event, meta *event.Metadata) error
}

// EventReceived is called when another instance's broadcast is accepted
// for local delivery.
type EventReceived interface {
	OnEventReceived(ctx context.Context, evt *event.Event, meta *event.Metadata) error
}

// EventStarted is called when a worker moves a delivery to Processing.
type EventStarted interface {
	OnEventStarted(ctx context.Context, evt *event.Event, meta *event.Metadata) error
}

// EventCompleted is called after every handler for a delivery succeeded.
type EventCompleted interface {
	OnEventCompleted(ctx context.Context, evt *event.Event, meta *event.Metadata, elapsed time.Duration) error
}

// EventFailed is called after any handler for a delivery attempt failed.
// It fires on every failed attempt, including ones that will be retried.
type EventFailed interface {
	OnEventFailed(ctx context.Context, evt *event.Event, meta *event.Metadata, err error) error
}

// EventRetrying is called when a failed delivery is scheduled for retry.
type EventRetrying interface {
	OnEventRetrying(ctx context.Context, evt *event.Event, meta *event.Metadata, attempt int, nextAt time.Time) error
}

// EventDeadLettered is called when a delivery exhausted its retries and
// was moved to the dead letter queue.
type EventDeadLettered interface {
	OnEventDeadLettered(ctx context.Context, evt *event.Event, meta *event.Metadata, err error) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// SweepCompleted is called after the periodic old-event sweep ran.
type SweepCompleted interface {
	OnSweepCompleted(ctx context.Context, removed int, elapsed time.Duration) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
