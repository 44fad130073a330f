// Package worker provides the delivery engine: an Executor that runs every
// handler registered for an event through middleware and drives the
// delivery state machine, and a Pool that bounds the local work queue and
// the number of concurrent deliveries.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/eventbus/backoff"
	"github.com/xraph/eventbus/dlq"
	"github.com/xraph/eventbus/event"
	"github.com/xraph/eventbus/ext"
	"github.com/xraph/eventbus/middleware"
)

// Scheduler runs a task after a delay. Pool implements it.
type Scheduler interface {
	Schedule(delay time.Duration, t Task) error
}

// Executor delivers one attempt of one event: it runs every registered
// handler, persists each status transition, and either completes the
// attempt, schedules a retry, or moves the event to the dead letter queue.
//
// A delivery ID is processed by at most one goroutine of an Executor at a
// time. A second Execute for an ID already in flight is skipped.
type Executor struct {
	registry   *event.Registry
	extensions *ext.Registry
	store      event.Store
	dlq        *dlq.Queue
	backoff    backoff.Strategy
	scheduler  Scheduler
	maxRetries int
	mw         middleware.Middleware
	logger     *slog.Logger

	mu         sync.Mutex
	processing map[string]struct{}
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithBackoff sets the retry delay strategy.
func WithBackoff(s backoff.Strategy) ExecutorOption {
	return func(e *Executor) { e.backoff = s }
}

// WithMaxRetries sets how many retries a failing delivery gets before it
// is dead-lettered.
func WithMaxRetries(n int) ExecutorOption {
	return func(e *Executor) { e.maxRetries = n }
}

// WithMiddleware sets the middleware wrapped around every handler call.
// The first middleware is the outermost.
func WithMiddleware(mws ...middleware.Middleware) ExecutorOption {
	return func(e *Executor) { e.mw = middleware.Chain(mws...) }
}

// WithExtensions sets the registry notified of lifecycle transitions.
func WithExtensions(r *ext.Registry) ExecutorOption {
	return func(e *Executor) { e.extensions = r }
}

// NewExecutor creates an Executor. The store should never fail loudly; wrap
// real backends with store/guard.
func NewExecutor(
	registry *event.Registry,
	store event.Store,
	queue *dlq.Queue,
	scheduler Scheduler,
	logger *slog.Logger,
	opts ...ExecutorOption,
) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Executor{
		registry:   registry,
		store:      store,
		dlq:        queue,
		scheduler:  scheduler,
		backoff:    backoff.DefaultStrategy(),
		maxRetries: 3,
		mw:         middleware.Chain(),
		logger:     logger,
		processing: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.extensions == nil {
		e.extensions = ext.NewRegistry(logger)
	}
	return e
}

// Task wraps one delivery attempt as a pool task.
func (e *Executor) Task(evt *event.Event, meta *event.Metadata) Task {
	return Task{
		Name:     evt.Name.String(),
		TenantID: evt.TenantID,
		Run: func(ctx context.Context) {
			e.Execute(ctx, evt, meta)
		},
	}
}

// InFlight returns the number of deliveries currently being processed.
func (e *Executor) InFlight() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.processing)
}

// Execute runs one delivery attempt. meta is owned by the Executor for the
// duration of the call and is mutated in place.
//
// With no registered handlers the attempt stays Pending and nothing is
// persisted. Handler failures drive the retry and dead-letter transitions;
// store failures are logged and never change the outcome.
func (e *Executor) Execute(ctx context.Context, evt *event.Event, meta *event.Metadata) {
	handlers := e.registry.Handlers(evt.Name)
	if len(handlers) == 0 {
		e.logger.Debug("no handlers for event",
			slog.String("event_name", evt.Name.String()),
			slog.String("delivery_id", meta.ID.String()),
		)
		return
	}

	key := meta.ID.String()
	if !e.claim(key) {
		e.logger.Debug("delivery already in progress",
			slog.String("delivery_id", key),
		)
		return
	}
	delay, retry := e.deliver(ctx, evt, meta, handlers)
	e.release(key)

	// The guard is released before the retry is scheduled so a zero
	// delay cannot fire while the ID is still claimed.
	if retry {
		e.scheduleRetry(ctx, evt, meta, delay)
	}
}

// deliver runs the attempt. It reports whether a retry is due and after
// what delay.
func (e *Executor) deliver(ctx context.Context, evt *event.Event, meta *event.Metadata, handlers []event.HandlerFunc) (time.Duration, bool) {
	// Persistence must finish even when the pool is cancelling handlers.
	storeCtx := context.WithoutCancel(ctx)

	meta.MarkProcessing(time.Now().UTC())
	e.persist(storeCtx, meta)
	e.extensions.EmitEventStarted(ctx, evt, meta)

	start := time.Now()
	err := e.runHandlers(ctx, evt, meta.Clone(), handlers)
	elapsed := time.Since(start)

	if err == nil {
		meta.MarkCompleted()
		e.persist(storeCtx, meta)
		e.extensions.EmitEventCompleted(ctx, evt, meta, elapsed)
		return 0, false
	}

	meta.MarkFailed(err)
	e.persist(storeCtx, meta)
	e.extensions.EmitEventFailed(ctx, evt, meta, err)

	if meta.RetryCount < e.maxRetries {
		meta.MarkRetrying()
		e.persist(storeCtx, meta)
		return e.backoff.Delay(meta.RetryCount), true
	}

	e.deadLetter(storeCtx, evt, meta, err)
	return 0, false
}

// runHandlers invokes every handler concurrently and joins their errors.
// view is a snapshot of the metadata shared read-only by the middleware.
func (e *Executor) runHandlers(ctx context.Context, evt *event.Event, view *event.Metadata, handlers []event.HandlerFunc) error {
	errs := make([]error, len(handlers))
	var wg sync.WaitGroup
	for i, h := range handlers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = e.mw(ctx, evt, view, func(ctx context.Context) error {
				return h(ctx, evt)
			})
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (e *Executor) scheduleRetry(ctx context.Context, evt *event.Event, meta *event.Metadata, delay time.Duration) {
	nextAt := time.Now().Add(delay)
	if err := e.scheduler.Schedule(delay, e.Task(evt, meta)); err != nil {
		// The attempt is persisted as Pending; it is lost only locally.
		e.logger.Warn("failed to schedule retry",
			slog.String("event_name", evt.Name.String()),
			slog.String("delivery_id", meta.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	e.extensions.EmitEventRetrying(ctx, evt, meta, meta.RetryCount, nextAt)
	e.logger.Info("event scheduled for retry",
		slog.String("event_name", evt.Name.String()),
		slog.String("delivery_id", meta.ID.String()),
		slog.Int("attempt", meta.RetryCount),
		slog.Int("max_retries", e.maxRetries),
		slog.Duration("delay", delay),
	)
}

func (e *Executor) deadLetter(ctx context.Context, evt *event.Event, meta *event.Metadata, cause error) {
	if e.dlq != nil {
		e.dlq.Push(ctx, evt, meta, cause)
	}
	e.extensions.EmitEventDeadLettered(ctx, evt, meta, cause)

	e.logger.Warn("event moved to DLQ after exhausting retries",
		slog.String("event_name", evt.Name.String()),
		slog.String("event_id", evt.ID.String()),
		slog.String("delivery_id", meta.ID.String()),
		slog.Int("retry_count", meta.RetryCount),
		slog.String("error", cause.Error()),
	)
}

// persist writes a metadata snapshot. Failures are logged only.
func (e *Executor) persist(ctx context.Context, meta *event.Metadata) {
	if err := e.store.UpdateEventMetadata(ctx, meta.ID, meta.Clone()); err != nil {
		e.logger.Warn("failed to persist delivery metadata",
			slog.String("delivery_id", meta.ID.String()),
			slog.String("status", string(meta.Status)),
			slog.String("error", err.Error()),
		)
	}
}

// ── helpers ──────────────────────────────────────────

func (e *Executor) claim(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.processing[key]; busy {
		return false
	}
	e.processing[key] = struct{}{}
	return true
}

func (e *Executor) release(key string) {
	e.mu.Lock()
	delete(e.processing, key)
	e.mu.Unlock()
}
