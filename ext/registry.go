package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/eventbus/event"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time.
type entry[H any] struct {
	name string
	hook H
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
//
// Register all extensions before the engine starts; emitting is safe
// for concurrent use, registering is not.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	published    []entry[EventPublished]
	received     []entry[EventReceived]
	started      []entry[EventStarted]
	completed    []entry[EventCompleted]
	failed       []entry[EventFailed]
	retrying     []entry[EventRetrying]
	deadLettered []entry[EventDeadLettered]
	sweep        []entry[SweepCompleted]
	shutdown     []entry[Shutdown]
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(EventPublished); ok {
		r.published = append(r.published, entry[EventPublished]{name, h})
	}
	if h, ok := e.(EventReceived); ok {
		r.received = append(r.received, entry[EventReceived]{name, h})
	}
	if h, ok := e.(EventStarted); ok {
		r.started = append(r.started, entry[EventStarted]{name, h})
	}
	if h, ok := e.(EventCompleted); ok {
		r.completed = append(r.completed, entry[EventCompleted]{name, h})
	}
	if h, ok := e.(EventFailed); ok {
		r.failed = append(r.failed, entry[EventFailed]{name, h})
	}
	if h, ok := e.(EventRetrying); ok {
		r.retrying = append(r.retrying, entry[EventRetrying]{name, h})
	}
	if h, ok := e.(EventDeadLettered); ok {
		r.deadLettered = append(r.deadLettered, entry[EventDeadLettered]{name, h})
	}
	if h, ok := e.(SweepCompleted); ok {
		r.sweep = append(r.sweep, entry[SweepCompleted]{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, entry[Shutdown]{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Delivery event emitters
// ──────────────────────────────────────────────────

// EmitEventPublished notifies all extensions that implement EventPublished.
func (r *Registry) EmitEventPublished(ctx context.Context, evt *event.Event, meta *event.Metadata) {
	for _, e := range r.published {
		if err := e.hook.OnEventPublished(ctx, evt, meta); err != nil {
			r.logHookError("OnEventPublished", e.name, err)
		}
	}
}

// EmitEventReceived notifies all extensions that implement EventReceived.
func (r *Registry) EmitEventReceived(ctx context.Context, evt *event.Event, meta *event.Metadata) {
	for _, e := range r.received {
		if err := e.hook.OnEventReceived(ctx, evt, meta); err != nil {
			r.logHookError("OnEventReceived", e.name, err)
		}
	}
}

// EmitEventStarted notifies all extensions that implement EventStarted.
func (r *Registry) EmitEventStarted(ctx context.Context, evt *event.Event, meta *event.Metadata) {
	for _, e := range r.started {
		if err := e.hook.OnEventStarted(ctx, evt, meta); err != nil {
			r.logHookError("OnEventStarted", e.name, err)
		}
	}
}

// EmitEventCompleted notifies all extensions that implement EventCompleted.
func (r *Registry) EmitEventCompleted(ctx context.Context, evt *event.Event, meta *event.Metadata, elapsed time.Duration) {
	for _, e := range r.completed {
		if err := e.hook.OnEventCompleted(ctx, evt, meta, elapsed); err != nil {
			r.logHookError("OnEventCompleted", e.name, err)
		}
	}
}

// EmitEventFailed notifies all extensions that implement EventFailed.
func (r *Registry) EmitEventFailed(ctx context.Context, evt *event.Event, meta *event.Metadata, cause error) {
	for _, e := range r.failed {
		if err := e.hook.OnEventFailed(ctx, evt, meta, cause); err != nil {
			r.logHookError("OnEventFailed", e.name, err)
		}
	}
}

// EmitEventRetrying notifies all extensions that implement EventRetrying.
func (r *Registry) EmitEventRetrying(ctx context.Context, evt *event.Event, meta *event.Metadata, attempt int, nextAt time.Time) {
	for _, e := range r.retrying {
		if err := e.hook.OnEventRetrying(ctx, evt, meta, attempt, nextAt); err != nil {
			r.logHookError("OnEventRetrying", e.name, err)
		}
	}
}

// EmitEventDeadLettered notifies all extensions that implement EventDeadLettered.
func (r *Registry) EmitEventDeadLettered(ctx context.Context, evt *event.Event, meta *event.Metadata, cause error) {
	for _, e := range r.deadLettered {
		if err := e.hook.OnEventDeadLettered(ctx, evt, meta, cause); err != nil {
			r.logHookError("OnEventDeadLettered", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Other event emitters
// ──────────────────────────────────────────────────

// EmitSweepCompleted notifies all extensions that implement SweepCompleted.
func (r *Registry) EmitSweepCompleted(ctx context.Context, removed int, elapsed time.Duration) {
	for _, e := range r.sweep {
		if err := e.hook.OnSweepCompleted(ctx, removed, elapsed); err != nil {
			r.logHookError("OnSweepCompleted", e.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Hook errors are never propagated to the delivery pipeline.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
