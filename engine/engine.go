// Package engine wires the Eventbus subsystems into the asynchronous
// dispatcher: a guarded store, the distribution channel, the worker pool,
// the executor with its middleware chain, the dead letter queue, the
// extension registry and the periodic sweep.
//
// This package sits above every subsystem package and below the
// application layer, so subsystems never import each other back.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/eventbus"
	"github.com/xraph/eventbus/backoff"
	"github.com/xraph/eventbus/broadcast"
	"github.com/xraph/eventbus/dlq"
	"github.com/xraph/eventbus/event"
	"github.com/xraph/eventbus/ext"
	"github.com/xraph/eventbus/id"
	mw "github.com/xraph/eventbus/middleware"
	"github.com/xraph/eventbus/observability"
	"github.com/xraph/eventbus/queue"
	"github.com/xraph/eventbus/store"
	"github.com/xraph/eventbus/store/guard"
	"github.com/xraph/eventbus/store/memory"
	"github.com/xraph/eventbus/worker"
)

type state int

const (
	stateNew state = iota
	stateRunning
	stateStopped
)

// Engine is the asynchronous event dispatcher. Create one with New,
// subscribe handlers, then Start it. An Engine cannot be restarted
// after Stop.
type Engine struct {
	cfg        eventbus.Config
	instanceID string
	logger     *slog.Logger

	registry   *event.Registry
	store      *guard.Store
	channel    broadcast.Channel
	dlq        *dlq.Queue
	bo         backoff.Strategy
	pool       *worker.Pool
	exec       *worker.Executor
	extensions *ext.Registry
	sweeper    *sweeper

	// Collected by options and applied once the logger is final.
	rawStore      store.Store
	pendingExts   []ext.Extension
	mws           []mw.Middleware
	queueConfigs  []queue.Config
	tenantConfigs []queue.TenantConfig
	queueManager  *queue.Manager

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	mu     sync.RWMutex
	state  state
	cancel context.CancelFunc
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig replaces the default configuration.
func WithConfig(cfg eventbus.Config) Option {
	return func(eng *Engine) { eng.cfg = cfg }
}

// WithLogger sets the logger shared by every subsystem.
func WithLogger(l *slog.Logger) Option {
	return func(eng *Engine) { eng.logger = l }
}

// WithStore sets the backing store. It is wrapped in a guard so its
// failures never reach publishers. Without it an in-memory store is used.
func WithStore(s store.Store) Option {
	return func(eng *Engine) { eng.rawStore = s }
}

// WithChannel sets the distribution channel. Without it the engine runs
// as a single instance.
func WithChannel(c broadcast.Channel) Option {
	return func(eng *Engine) { eng.channel = c }
}

// WithBackoff sets the retry backoff strategy. If not set, the strategy
// named by Config.RetryBackoff is built from RetryDelay and MaxRetryDelay.
func WithBackoff(b backoff.Strategy) Option {
	return func(eng *Engine) { eng.bo = b }
}

// WithExtension registers an extension with the engine.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) { eng.pendingExts = append(eng.pendingExts, e) }
}

// WithMiddleware appends middleware after the default chain, so it runs
// closest to the handler.
func WithMiddleware(m ...mw.Middleware) Option {
	return func(eng *Engine) { eng.mws = append(eng.mws, m...) }
}

// WithQueueConfig sets per-event-name rate and concurrency limits.
// Event names not listed have no limits.
func WithQueueConfig(configs ...queue.Config) Option {
	return func(eng *Engine) { eng.queueConfigs = append(eng.queueConfigs, configs...) }
}

// WithTenantConfig sets per-tenant limits for an event name.
func WithTenantConfig(configs ...queue.TenantConfig) Option {
	return func(eng *Engine) { eng.tenantConfigs = append(eng.tenantConfigs, configs...) }
}

// WithInstanceID overrides Config.InstanceID.
func WithInstanceID(instanceID string) Option {
	return func(eng *Engine) { eng.cfg.InstanceID = instanceID }
}

// WithTracerProvider sets a custom OpenTelemetry TracerProvider for the
// tracing middleware. If not set, the global provider is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) { eng.tracerProvider = tp }
}

// WithMeterProvider sets a custom OpenTelemetry MeterProvider for the
// metrics middleware and the observability extension. If not set, the
// global provider is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) { eng.meterProvider = mp }
}

// New builds an Engine. It returns an error wrapping ErrInvalidConfig
// when the configuration does not validate.
func New(opts ...Option) (*Engine, error) {
	eng := &Engine{
		cfg:    eventbus.DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(eng)
	}

	cfg := eng.cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	eng.instanceID = cfg.InstanceID
	if eng.instanceID == "" {
		eng.instanceID = id.NewInstanceID().String()
		eng.cfg.InstanceID = eng.instanceID
	}
	logger := eng.logger.With(slog.String("instance_id", eng.instanceID))
	eng.logger = logger

	if eng.bo == nil {
		bo, err := backoff.FromName(cfg.RetryBackoff, cfg.RetryDelay, cfg.MaxRetryDelay)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", eventbus.ErrInvalidConfig, err)
		}
		eng.bo = bo
	}

	if cfg.SweepSchedule != "" {
		sched, err := ParseSchedule(cfg.SweepSchedule)
		if err != nil {
			return nil, err
		}
		eng.sweeper = newSweeper(sched, eng.sweep, logger)
	}

	raw := eng.rawStore
	if raw == nil {
		raw = memory.New(
			memory.WithTTL(cfg.EventTTL),
			memory.WithDefaultLimit(cfg.DefaultListLimit),
		)
	}
	eng.store = guard.New(raw, guard.WithLogger(logger))

	eng.extensions = ext.NewRegistry(logger)

	// Register the observability metrics extension.
	var obsExt *observability.MetricsExtension
	if eng.meterProvider != nil {
		meter := eng.meterProvider.Meter("github.com/xraph/eventbus/observability")
		obsExt = observability.NewMetricsExtensionWithMeter(meter)
	} else {
		obsExt = observability.NewMetricsExtension()
	}
	eng.extensions.Register(obsExt)
	for _, e := range eng.pendingExts {
		eng.extensions.Register(e)
	}

	eng.registry = event.NewRegistry()
	eng.dlq = dlq.NewQueue(cfg.DLQMaxSize, eng.store, logger)

	poolOpts := []worker.PoolOption{
		worker.WithConcurrency(cfg.Concurrency),
		worker.WithQueueSize(cfg.QueueSize),
	}
	if len(eng.queueConfigs) > 0 || len(eng.tenantConfigs) > 0 {
		eng.queueManager = queue.NewManager(eng.queueConfigs...)
		for _, tc := range eng.tenantConfigs {
			eng.queueManager.SetTenantConfig(tc)
		}
		poolOpts = append(poolOpts, worker.WithLimiter(eng.queueManager))
	}
	eng.pool = worker.NewPool(logger, poolOpts...)

	eng.exec = worker.NewExecutor(eng.registry, eng.store, eng.dlq, eng.pool, logger,
		worker.WithBackoff(eng.bo),
		worker.WithMaxRetries(cfg.MaxRetries),
		worker.WithExtensions(eng.extensions),
		worker.WithMiddleware(eng.middleware()...),
	)

	return eng, nil
}

// middleware builds the handler chain: recover → tracing → metrics →
// logging → scope → timeout, followed by user middleware.
func (eng *Engine) middleware() []mw.Middleware {
	var tracingMw mw.Middleware
	if eng.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(eng.tracerProvider.Tracer("github.com/xraph/eventbus"))
	} else {
		tracingMw = mw.Tracing()
	}

	var metricsMw mw.Middleware
	if eng.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(eng.meterProvider.Meter("github.com/xraph/eventbus"))
	} else {
		metricsMw = mw.Metrics()
	}

	chain := []mw.Middleware{
		mw.Recover(eng.logger),
		tracingMw,
		metricsMw,
		mw.Logging(eng.logger),
		mw.Scope(),
	}
	if eng.cfg.HandlerTimeout > 0 {
		chain = append(chain, mw.Timeout(eng.cfg.HandlerTimeout))
	}
	return append(chain, eng.mws...)
}

// Subscribe registers a typed handler for the event kind declared by P.
func Subscribe[P event.Payload](eng *Engine, fn func(ctx context.Context, evt *event.Event, payload P) error) error {
	return event.Subscribe(eng.registry, fn)
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Start launches the worker pool, rehydrates the dead letter queue from
// the store, subscribes to the distribution channel and starts the sweep.
// An unreachable channel is logged; the engine still runs locally.
func (eng *Engine) Start(ctx context.Context) error {
	eng.mu.Lock()
	defer eng.mu.Unlock()

	switch eng.state {
	case stateRunning:
		return nil
	case stateStopped:
		return fmt.Errorf("%w: engine cannot be restarted", eventbus.ErrNotRunning)
	}

	if err := eng.pool.Start(ctx); err != nil {
		return fmt.Errorf("start worker pool: %w", err)
	}

	if err := eng.dlq.Load(ctx); err != nil {
		eng.logger.Warn("failed to load dead letter queue", slog.String("error", err.Error()))
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	eng.cancel = cancel

	if eng.channel != nil {
		if err := eng.channel.Subscribe(runCtx, eng.ingress); err != nil {
			eng.logger.Warn("distribution channel subscribe failed, running local-only",
				slog.String("error", err.Error()),
			)
		}
	}

	if eng.sweeper != nil {
		eng.sweeper.start(runCtx)
	}

	eng.state = stateRunning
	eng.logger.Info("eventbus engine started",
		slog.Int("handlers", eng.registry.Count()),
		slog.Int("dlq_size", eng.dlq.Len()),
	)
	return nil
}

// Stop stops the sweep and the channel subscription, then drains the
// worker pool. Pending delayed retries are discarded; their metadata stays
// Pending in the store. When ctx has no deadline, Config.ShutdownTimeout
// bounds the wait for in-flight handlers.
func (eng *Engine) Stop(ctx context.Context) error {
	eng.mu.Lock()
	if eng.state != stateRunning {
		eng.state = stateStopped
		eng.mu.Unlock()
		return nil
	}
	eng.state = stateStopped
	eng.mu.Unlock()

	if eng.sweeper != nil {
		eng.sweeper.stop()
	}

	if eng.channel != nil {
		if err := eng.channel.Close(); err != nil {
			eng.logger.Warn("distribution channel close failed", slog.String("error", err.Error()))
		}
	}

	stopCtx := ctx
	if _, ok := ctx.Deadline(); !ok && eng.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		stopCtx, cancel = context.WithTimeout(ctx, eng.cfg.ShutdownTimeout)
		defer cancel()
	}
	poolErr := eng.pool.Stop(stopCtx)

	eng.cancel()
	eng.extensions.EmitShutdown(ctx)

	eng.logger.Info("eventbus engine stopped")
	return poolErr
}

func (eng *Engine) running() bool {
	eng.mu.RLock()
	defer eng.mu.RUnlock()
	return eng.state == stateRunning
}

// ──────────────────────────────────────────────────
// Publishing
// ──────────────────────────────────────────────────

// Publish records a new delivery of evt, broadcasts it to the other
// instances and queues it for local delivery. It returns once the
// delivery is queued, without waiting for handlers, with a snapshot of
// the fresh Pending metadata. The published hook fires before queueing.
//
// Store and channel failures are logged and never returned. Publish
// blocks while the local queue is full and returns ctx.Err() if ctx is
// done first; the delivery is then persisted and broadcast but not
// handled locally.
func (eng *Engine) Publish(ctx context.Context, evt *event.Event) (*event.Metadata, error) {
	if evt == nil {
		return nil, eventbus.ErrNilEvent
	}
	if !evt.Name.Known() {
		return nil, fmt.Errorf("%w: %q", eventbus.ErrUnknownEvent, evt.Name)
	}
	if !eng.running() {
		return nil, eventbus.ErrNotRunning
	}

	meta := event.NewMetadata(evt.Name, eng.instanceID)
	snapshot := meta.Clone()

	if err := eng.store.SaveEvent(ctx, evt, meta.Clone()); err != nil {
		eng.logger.Warn("failed to record delivery",
			slog.String("event_name", evt.Name.String()),
			slog.String("delivery_id", meta.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	if eng.channel != nil {
		env := &event.Envelope{Event: evt, Metadata: meta.Clone()}
		if err := eng.channel.Publish(ctx, env); err != nil {
			eng.logger.Warn("broadcast failed, delivering locally only",
				slog.String("event_name", evt.Name.String()),
				slog.String("delivery_id", meta.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	// Hooks see published before any worker can report an outcome.
	eng.extensions.EmitEventPublished(ctx, evt, snapshot)

	if err := eng.pool.Submit(ctx, eng.exec.Task(evt, meta)); err != nil {
		if errors.Is(err, eventbus.ErrPoolStopped) {
			return nil, eventbus.ErrNotRunning
		}
		return nil, fmt.Errorf("queue delivery %s: %w", meta.ID, err)
	}
	return snapshot, nil
}

// ingress handles envelopes arriving on the distribution channel.
// Envelopes this instance published are dropped; their local delivery
// was already queued by Publish.
func (eng *Engine) ingress(ctx context.Context, env *event.Envelope) {
	if env == nil || env.Event == nil || env.Metadata == nil {
		eng.logger.Warn("dropping incomplete envelope")
		return
	}
	if env.Metadata.Origin == eng.instanceID {
		return
	}
	if !env.Event.Name.Known() {
		eng.logger.Warn("dropping envelope with unknown event name",
			slog.String("event_name", env.Event.Name.String()),
			slog.String("delivery_id", env.Metadata.ID.String()),
		)
		return
	}

	eng.extensions.EmitEventReceived(ctx, env.Event, env.Metadata)

	if err := eng.pool.Submit(ctx, eng.exec.Task(env.Event, env.Metadata)); err != nil {
		eng.logger.Warn("dropping received delivery",
			slog.String("event_name", env.Event.Name.String()),
			slog.String("delivery_id", env.Metadata.ID.String()),
			slog.String("origin", env.Metadata.Origin),
			slog.String("error", err.Error()),
		)
	}
}

// ──────────────────────────────────────────────────
// Dead letter queue
// ──────────────────────────────────────────────────

// RetryDeadLetterQueue drains the dead letter queue and re-publishes every
// event as a fresh delivery with a new delivery ID and a zero retry count.
// Entries that could not be re-published are put back.
func (eng *Engine) RetryDeadLetterQueue(ctx context.Context) (int, error) {
	if !eng.running() {
		return 0, eventbus.ErrNotRunning
	}

	n, err := eng.dlq.Replay(ctx, func(ctx context.Context, evt *event.Event) error {
		_, pubErr := eng.Publish(ctx, evt)
		return pubErr
	})
	eng.logger.Info("dead letter queue replayed",
		slog.Int("replayed", n),
		slog.Int("remaining", eng.dlq.Len()),
	)
	return n, err
}

// DeadLetterQueue returns a snapshot of the dead letter queue, oldest first.
func (eng *Engine) DeadLetterQueue() []*dlq.Entry { return eng.dlq.Entries() }

// ──────────────────────────────────────────────────
// Store access
// ──────────────────────────────────────────────────

// GetEvent returns the event and metadata stored under deliveryID.
func (eng *Engine) GetEvent(ctx context.Context, deliveryID id.DeliveryID) (*event.Envelope, error) {
	return eng.store.GetEvent(ctx, deliveryID)
}

// GetEventsByName lists deliveries of the named event, newest first.
func (eng *Engine) GetEventsByName(ctx context.Context, name event.Name, limit int) ([]*event.Envelope, error) {
	return eng.store.GetEventsByName(ctx, name, limit)
}

// GetPendingEvents lists Pending deliveries, newest first.
func (eng *Engine) GetPendingEvents(ctx context.Context, limit int) ([]*event.Envelope, error) {
	return eng.store.GetPendingEvents(ctx, limit)
}

// GetFailedEvents lists Failed deliveries, newest first.
func (eng *Engine) GetFailedEvents(ctx context.Context, limit int) ([]*event.Envelope, error) {
	return eng.store.GetFailedEvents(ctx, limit)
}

// ClearOldEvents deletes every delivery published before olderThan and
// returns how many were removed. The dead letter queue is untouched.
func (eng *Engine) ClearOldEvents(ctx context.Context, olderThan time.Time) (int, error) {
	start := time.Now()
	removed, err := eng.store.ClearOldEvents(ctx, olderThan)
	if err != nil {
		return 0, err
	}
	elapsed := time.Since(start)

	eng.extensions.EmitSweepCompleted(ctx, removed, elapsed)
	eng.logger.Info("old events cleared",
		slog.Int("removed", removed),
		slog.Time("older_than", olderThan),
		slog.Duration("elapsed", elapsed),
	)
	return removed, nil
}

func (eng *Engine) sweep(ctx context.Context) {
	retention := eng.cfg.SweepRetention
	if retention <= 0 {
		retention = eng.cfg.EventTTL
	}
	if _, err := eng.ClearOldEvents(ctx, time.Now().UTC().Add(-retention)); err != nil {
		eng.logger.Warn("scheduled sweep failed", slog.String("error", err.Error()))
	}
}

// ──────────────────────────────────────────────────
// Introspection
// ──────────────────────────────────────────────────

// Stats is a point-in-time view of the engine.
type Stats struct {
	InstanceID       string       `json:"instance_id"`
	Running          bool         `json:"running"`
	Handlers         int          `json:"handlers"`
	InFlight         int          `json:"in_flight"`
	DLQSize          int          `json:"dlq_size"`
	DLQCapacity      int          `json:"dlq_capacity"`
	ChannelConnected bool         `json:"channel_connected"`
	StoreAvailable   bool         `json:"store_available"`
	StoreState       string       `json:"store_state"`
	Store            event.Stats  `json:"store"`
	Pool             worker.Stats `json:"pool"`
}

// Stats returns handler, delivery, dead letter queue and connectivity
// figures. Store counts are zero while the store is unreachable.
func (eng *Engine) Stats(ctx context.Context) Stats {
	storeStats, _ := eng.store.Stats(ctx)
	return Stats{
		InstanceID:       eng.instanceID,
		Running:          eng.running(),
		Handlers:         eng.registry.Count(),
		InFlight:         eng.exec.InFlight(),
		DLQSize:          eng.dlq.Len(),
		DLQCapacity:      eng.dlq.Cap(),
		ChannelConnected: eng.channel != nil && eng.channel.Connected(),
		StoreAvailable:   eng.store.Available(),
		StoreState:       eng.store.State(),
		Store:            storeStats,
		Pool:             eng.pool.Stats(),
	}
}

// Ping checks the backing store directly.
func (eng *Engine) Ping(ctx context.Context) error { return eng.store.Ping(ctx) }

// InstanceID returns the identifier this engine stamps on its deliveries.
func (eng *Engine) InstanceID() string { return eng.instanceID }

// Registry returns the handler registry.
func (eng *Engine) Registry() *event.Registry { return eng.registry }

// Extensions returns the extension registry.
func (eng *Engine) Extensions() *ext.Registry { return eng.extensions }

// Config returns the engine configuration.
func (eng *Engine) Config() eventbus.Config { return eng.cfg }

// QueueManager returns the limit manager, or nil if no queue or tenant
// configs were provided.
func (eng *Engine) QueueManager() *queue.Manager { return eng.queueManager }
