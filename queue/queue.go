package queue

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/xraph/eventbus/event"
)

// Config defines per-event-name delivery limits.
type Config struct {
	// Event is the event name the limits apply to.
	Event event.Name

	// MaxConcurrency limits how many deliveries of this event may run at
	// once in the local worker pool. Zero means no event-specific limit
	// (pool-wide concurrency still applies).
	MaxConcurrency int

	// RateLimit is the maximum sustained deliveries per second for this
	// event. Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the burst size for the token-bucket rate limiter.
	// Defaults to 1 if RateLimit is set but RateBurst is zero.
	RateBurst int
}

// gate is the runtime state shared by event and tenant limits.
type gate struct {
	limiter        *rate.Limiter
	maxConcurrency int
	active         int
}

func newGate(maxConcurrency int, limit float64, burst int) *gate {
	g := &gate{maxConcurrency: maxConcurrency}
	if limit > 0 {
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(limit), burst)
	}
	return g
}

func (g *gate) full() bool {
	return g.maxConcurrency > 0 && g.active >= g.maxConcurrency
}

func (g *gate) release() {
	if g.active > 0 {
		g.active--
	}
}

// Manager controls per-event and per-tenant rate limiting and concurrency.
// It is safe for concurrent use.
type Manager struct {
	mu      sync.Mutex
	events  map[event.Name]*gate
	tenants map[string]*gate
}

// NewManager creates a Manager with the given event configurations.
// Events not listed here have no limits.
func NewManager(configs ...Config) *Manager {
	m := &Manager{
		events:  make(map[event.Name]*gate, len(configs)),
		tenants: make(map[string]*gate),
	}
	for _, cfg := range configs {
		m.events[cfg.Event] = newGate(cfg.MaxConcurrency, cfg.RateLimit, cfg.RateBurst)
	}
	return m
}

// Acquire checks the limits for one delivery of name on behalf of
// tenantID. If the delivery may proceed it takes a slot and returns true.
// The caller MUST call Release with the same arguments when it finishes.
//
// Concurrency is checked before any rate token is spent, so a delivery
// refused for lack of a slot does not consume rate budget.
func (m *Manager) Acquire(name, tenantID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	eg := m.events[event.Name(name)]
	var tg *gate
	if tenantID != "" {
		tg = m.tenants[tenantKey(name, tenantID)]
	}

	if (eg != nil && eg.full()) || (tg != nil && tg.full()) {
		return false
	}
	if eg != nil && eg.limiter != nil && !eg.limiter.Allow() {
		return false
	}
	if tg != nil && tg.limiter != nil && !tg.limiter.Allow() {
		return false
	}

	if eg != nil {
		eg.active++
	}
	if tg != nil {
		tg.active++
	}
	return true
}

// Release frees the slot taken by Acquire.
func (m *Manager) Release(name, tenantID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if eg := m.events[event.Name(name)]; eg != nil {
		eg.release()
	}
	if tenantID != "" {
		if tg := m.tenants[tenantKey(name, tenantID)]; tg != nil {
			tg.release()
		}
	}
}

// SetConfig dynamically updates (or creates) an event configuration.
// Deliveries already holding a slot keep it.
func (m *Manager) SetConfig(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g := newGate(cfg.MaxConcurrency, cfg.RateLimit, cfg.RateBurst)
	if existing := m.events[cfg.Event]; existing != nil {
		g.active = existing.active
	}
	m.events[cfg.Event] = g
}

// ActiveCount returns the number of in-flight deliveries of name. Only
// configured events are counted.
func (m *Manager) ActiveCount(name event.Name) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g := m.events[name]; g != nil {
		return g.active
	}
	return 0
}
