package queue

import "github.com/xraph/eventbus/event"

// TenantConfig defines rate limits and concurrency for one tenant's
// deliveries of one event name. It keeps a noisy tenant from starving the
// others when a bulk import emits thousands of events at once.
type TenantConfig struct {
	// Event is the event name this config applies to.
	Event event.Name

	// TenantID is the tenant identifier (event.TenantID).
	TenantID string

	// RateLimit is the sustained deliveries per second for this tenant.
	RateLimit float64

	// RateBurst is the burst size for the tenant's rate limiter.
	RateBurst int

	// MaxConcurrency limits simultaneous deliveries for this tenant.
	// Zero means no tenant-specific concurrency limit.
	MaxConcurrency int
}

func tenantKey(name, tenantID string) string {
	return name + "\x00" + tenantID
}

// SetTenantConfig configures limits for one tenant on one event name.
// Calling it again for the same pair replaces the previous configuration.
func (m *Manager) SetTenantConfig(cfg TenantConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := tenantKey(string(cfg.Event), cfg.TenantID)
	g := newGate(cfg.MaxConcurrency, cfg.RateLimit, cfg.RateBurst)
	if existing := m.tenants[key]; existing != nil {
		g.active = existing.active
	}
	m.tenants[key] = g
}

// TenantActiveCount returns the in-flight deliveries of name for tenantID.
func (m *Manager) TenantActiveCount(name event.Name, tenantID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g := m.tenants[tenantKey(string(name), tenantID)]; g != nil {
		return g.active
	}
	return 0
}
