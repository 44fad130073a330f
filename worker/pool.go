package worker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xraph/eventbus"
)

// Limiter controls per-event and per-tenant rate limiting and concurrency.
// The pool calls Acquire before running a task and Release after it
// returns. queue.Manager implements it.
type Limiter interface {
	// Acquire reports whether a task for the name/tenant pair may run now.
	Acquire(name, tenantID string) bool
	// Release frees the slot taken by a successful Acquire.
	Release(name, tenantID string)
}

// Task is one unit of work for the pool.
type Task struct {
	// Name and TenantID key the Limiter. Name is usually the event name.
	Name     string
	TenantID string

	// Run does the work. The context is cancelled when Stop gives up
	// waiting for in-flight tasks.
	Run func(ctx context.Context)
}

// Stats is a snapshot of pool occupancy.
type Stats struct {
	Queued      int `json:"queued"`
	Active      int `json:"active"`
	Scheduled   int `json:"scheduled"`
	Capacity    int `json:"capacity"`
	Concurrency int `json:"concurrency"`
}

// Pool is a bounded work queue consumed by a fixed set of worker
// goroutines. Submit blocks while the queue is full, which is the
// back-pressure seen by publishers. Schedule runs a task after a delay
// and is how retries are timed.
type Pool struct {
	concurrency   int
	queueSize     int
	retryInterval time.Duration
	limiter       Limiter
	logger        *slog.Logger

	tasks  chan Task
	stopCh chan struct{}

	// mu guards running. Submitters register with submitWG while holding
	// the read lock so Stop can wait for them before closing tasks.
	mu       sync.RWMutex
	running  bool
	started  bool
	submitWG sync.WaitGroup
	wg       sync.WaitGroup

	// runCtx parents every task context; abort cancels tasks running now
	// and any the workers pick up afterwards.
	runCtx context.Context
	abort  context.CancelFunc
	active atomic.Int64

	timersMu sync.Mutex
	timers   map[uint64]*delayed
	seq      atomic.Uint64
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithConcurrency sets the number of worker goroutines.
func WithConcurrency(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithQueueSize bounds the number of tasks waiting for a worker.
func WithQueueSize(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.queueSize = n
		}
	}
}

// WithLimiter sets the limiter consulted before each task runs.
func WithLimiter(l Limiter) PoolOption {
	return func(p *Pool) { p.limiter = l }
}

// WithRetryInterval sets how long a task refused by the limiter waits
// before it is queued again.
func WithRetryInterval(d time.Duration) PoolOption {
	return func(p *Pool) {
		if d > 0 {
			p.retryInterval = d
		}
	}
}

// NewPool creates a worker pool. Call Start before submitting.
func NewPool(logger *slog.Logger, opts ...PoolOption) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		concurrency:   10,
		queueSize:     1024,
		retryInterval: 100 * time.Millisecond,
		logger:        logger,
		stopCh:        make(chan struct{}),
		timers:        make(map[uint64]*delayed),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.tasks = make(chan Task, p.queueSize)
	p.runCtx, p.abort = context.WithCancel(context.Background())
	return p
}

// Start launches the worker goroutines. It returns immediately. A pool
// cannot be restarted after Stop.
func (p *Pool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	if p.started {
		return eventbus.ErrPoolStopped
	}
	p.running = true
	p.started = true

	p.logger.Info("worker pool starting",
		slog.Int("concurrency", p.concurrency),
		slog.Int("queue_size", p.queueSize),
	)

	for range p.concurrency {
		p.wg.Add(1)
		go p.workLoop()
	}
	return nil
}

// Submit queues t for execution, blocking while the queue is full.
// It returns ErrPoolStopped once Stop has begun, or ctx.Err() if ctx is
// done before space frees up.
func (p *Pool) Submit(ctx context.Context, t Task) error {
	p.mu.RLock()
	if !p.running {
		p.mu.RUnlock()
		return eventbus.ErrPoolStopped
	}
	p.submitWG.Add(1)
	p.mu.RUnlock()
	defer p.submitWG.Done()

	select {
	case p.tasks <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stopCh:
		return eventbus.ErrPoolStopped
	}
}

// TrySubmit queues t without blocking. It returns ErrQueueFull when the
// queue has no free slot.
func (p *Pool) TrySubmit(t Task) error {
	p.mu.RLock()
	if !p.running {
		p.mu.RUnlock()
		return eventbus.ErrPoolStopped
	}
	p.submitWG.Add(1)
	p.mu.RUnlock()
	defer p.submitWG.Done()

	select {
	case p.tasks <- t:
		return nil
	default:
		return eventbus.ErrQueueFull
	}
}

// delayed is a task waiting on a timer. Deferred tasks were turned away
// by the limiter and still owe their first run.
type delayed struct {
	timer    *time.Timer
	task     Task
	deferred bool
}

// Schedule submits t after delay. Pending scheduled tasks are discarded
// by Stop; callers that need them to survive must persist them first.
func (p *Pool) Schedule(delay time.Duration, t Task) error {
	return p.schedule(delay, t, false)
}

func (p *Pool) schedule(delay time.Duration, t Task, deferred bool) error {
	p.mu.RLock()
	running := p.running
	p.mu.RUnlock()
	if !running {
		return eventbus.ErrPoolStopped
	}

	key := p.seq.Add(1)

	p.timersMu.Lock()
	defer p.timersMu.Unlock()
	p.timers[key] = &delayed{
		task:     t,
		deferred: deferred,
		timer:    time.AfterFunc(delay, func() { p.fire(key) }),
	}
	return nil
}

// fire submits a delayed task unless Stop has already claimed it.
func (p *Pool) fire(key uint64) {
	p.timersMu.Lock()
	d, ok := p.timers[key]
	delete(p.timers, key)
	p.timersMu.Unlock()
	if !ok {
		return
	}

	if err := p.Submit(context.Background(), d.task); err != nil {
		level := slog.LevelDebug
		if d.deferred {
			level = slog.LevelWarn
		}
		p.logger.Log(context.Background(), level, "scheduled task dropped",
			slog.String("name", d.task.Name),
			slog.Bool("deferred", d.deferred),
			slog.String("error", err.Error()),
		)
	}
}

// Stop stops accepting work and discards pending scheduled retries.
// Tasks the limiter deferred are put back on the queue, which is then
// drained, and Stop waits for in-flight tasks. If ctx is done first, the
// context of every running and remaining task is cancelled and Stop
// waits for them to return.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	p.logger.Info("worker pool stopping")

	close(p.stopCh)

	var deferred []Task
	discarded := 0
	p.timersMu.Lock()
	for key, d := range p.timers {
		d.timer.Stop()
		delete(p.timers, key)
		if d.deferred {
			deferred = append(deferred, d.task)
		} else {
			discarded++
		}
	}
	p.timersMu.Unlock()

	if discarded > 0 {
		p.logger.Info("discarded scheduled retries", slog.Int("count", discarded))
	}

	// No new sends can start; wait for the ones in progress, then let the
	// workers drain what is left.
	p.submitWG.Wait()
	for i, t := range deferred {
		select {
		case p.tasks <- t:
			continue
		case <-ctx.Done():
		}
		p.logger.Warn("dropping deferred tasks, shutdown deadline reached",
			slog.Int("count", len(deferred)-i),
		)
		break
	}
	close(p.tasks)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out, cancelling active tasks")
		p.abort()
		<-done
	}
	p.abort()
	return nil
}

// Stats returns a snapshot of queue depth and worker occupancy.
func (p *Pool) Stats() Stats {
	p.timersMu.Lock()
	scheduled := len(p.timers)
	p.timersMu.Unlock()

	return Stats{
		Queued:      len(p.tasks),
		Active:      int(p.active.Load()),
		Scheduled:   scheduled,
		Capacity:    p.queueSize,
		Concurrency: p.concurrency,
	}
}

// workLoop is run by each worker goroutine. It exits once the task
// channel is closed and drained.
func (p *Pool) workLoop() {
	defer p.wg.Done()

	for t := range p.tasks {
		if p.limiter != nil && !p.limiter.Acquire(t.Name, t.TenantID) {
			p.requeue(t)
			continue
		}
		p.run(t)
		if p.limiter != nil {
			p.limiter.Release(t.Name, t.TenantID)
		}
	}
}

// requeue defers a task refused by the limiter. During shutdown the
// task runs anyway so the queue can drain.
func (p *Pool) requeue(t Task) {
	if err := p.schedule(p.retryInterval, t, true); err != nil {
		p.run(t)
	}
}

func (p *Pool) run(t Task) {
	ctx, cancel := context.WithCancel(p.runCtx)
	p.active.Add(1)

	defer func() {
		p.active.Add(-1)
		cancel()
		if r := recover(); r != nil {
			p.logger.Error("worker task panicked",
				slog.String("name", t.Name),
				slog.Any("panic", r),
			)
		}
	}()

	t.Run(ctx)
}
