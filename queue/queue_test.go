package queue

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/eventbus/event"
)

// ---------------------------------------------------------------------------
// Manager basics
// ---------------------------------------------------------------------------

func TestNewManager_Empty(t *testing.T) {
	m := NewManager()
	// No configs; Acquire/Release should always succeed.
	if !m.Acquire("user.created", "") {
		t.Fatal("expected Acquire to succeed for unconfigured event")
	}
	m.Release("user.created", "")
}

func TestNewManager_WithConfig(t *testing.T) {
	m := NewManager(Config{
		Event:          event.UserCreatedName,
		MaxConcurrency: 2,
	})
	if m.ActiveCount(event.UserCreatedName) != 0 {
		t.Fatal("expected 0 active deliveries initially")
	}
}

// ---------------------------------------------------------------------------
// Concurrency limits
// ---------------------------------------------------------------------------

func TestManager_MaxConcurrency(t *testing.T) {
	m := NewManager(Config{
		Event:          event.UserCreatedName,
		MaxConcurrency: 2,
	})

	if !m.Acquire("user.created", "") {
		t.Fatal("first Acquire should succeed")
	}
	if !m.Acquire("user.created", "") {
		t.Fatal("second Acquire should succeed")
	}
	// Third should be blocked.
	if m.Acquire("user.created", "") {
		t.Fatal("third Acquire should fail (max concurrency 2)")
	}

	// Release one slot.
	m.Release("user.created", "")
	if !m.Acquire("user.created", "") {
		t.Fatal("Acquire should succeed after Release")
	}
}

func TestManager_AcquireRelease_ActiveCount(t *testing.T) {
	m := NewManager(Config{
		Event:          event.RoleAssignedName,
		MaxConcurrency: 5,
	})

	for i := range 3 {
		if !m.Acquire("role.assigned", "") {
			t.Fatalf("Acquire %d should succeed", i)
		}
	}
	if m.ActiveCount(event.RoleAssignedName) != 3 {
		t.Fatalf("expected 3 active, got %d", m.ActiveCount(event.RoleAssignedName))
	}

	m.Release("role.assigned", "")
	m.Release("role.assigned", "")
	if m.ActiveCount(event.RoleAssignedName) != 1 {
		t.Fatalf("expected 1 active, got %d", m.ActiveCount(event.RoleAssignedName))
	}
}

// ---------------------------------------------------------------------------
// Rate limiting
// ---------------------------------------------------------------------------

func TestManager_RateLimit_Throttles(t *testing.T) {
	m := NewManager(Config{
		Event:     event.UserLoggedInName,
		RateLimit: 1.0, // 1 per second
		RateBurst: 1,
	})

	// First should succeed (burst allows it).
	if !m.Acquire("user.logged_in", "") {
		t.Fatal("first Acquire should succeed (within burst)")
	}
	m.Release("user.logged_in", "")

	// Immediately after, token bucket is empty.
	if m.Acquire("user.logged_in", "") {
		t.Fatal("second Acquire should fail (rate limited)")
	}

	// Wait for token refill.
	time.Sleep(1100 * time.Millisecond)
	if !m.Acquire("user.logged_in", "") {
		t.Fatal("Acquire should succeed after token refill")
	}
	m.Release("user.logged_in", "")
}

func TestManager_RateLimit_BurstAllows(t *testing.T) {
	m := NewManager(Config{
		Event:     event.UserUpdatedName,
		RateLimit: 10.0,
		RateBurst: 3,
	})

	// Three immediate acquires should succeed (burst = 3).
	for i := range 3 {
		if !m.Acquire("user.updated", "") {
			t.Fatalf("Acquire %d should succeed (within burst)", i)
		}
		m.Release("user.updated", "")
	}
}

// ---------------------------------------------------------------------------
// Per-tenant isolation
// ---------------------------------------------------------------------------

func TestManager_TenantRateLimit(t *testing.T) {
	m := NewManager(Config{
		Event:          event.TenantUpdatedName,
		MaxConcurrency: 100, // high event limit
	})

	m.SetTenantConfig(TenantConfig{
		Event:          event.TenantUpdatedName,
		TenantID:       "tenant_a",
		MaxConcurrency: 1,
	})

	// Tenant A: first delivery succeeds.
	if !m.Acquire("tenant.updated", "tenant_a") {
		t.Fatal("tenant_a first Acquire should succeed")
	}
	// Tenant A: second delivery blocked.
	if m.Acquire("tenant.updated", "tenant_a") {
		t.Fatal("tenant_a second Acquire should fail (tenant max 1)")
	}

	// Tenant B (no config): should still succeed.
	if !m.Acquire("tenant.updated", "tenant_b") {
		t.Fatal("tenant_b Acquire should succeed (no tenant limit)")
	}

	m.Release("tenant.updated", "tenant_a")
	m.Release("tenant.updated", "tenant_b")
}

func TestManager_TenantIsolation(t *testing.T) {
	m := NewManager(Config{
		Event:          event.RoleRevokedName,
		MaxConcurrency: 100,
	})

	m.SetTenantConfig(TenantConfig{
		Event:          event.RoleRevokedName,
		TenantID:       "tenant_a",
		MaxConcurrency: 2,
	})
	m.SetTenantConfig(TenantConfig{
		Event:          event.RoleRevokedName,
		TenantID:       "tenant_b",
		MaxConcurrency: 2,
	})

	// Fill tenant_a slots.
	m.Acquire("role.revoked", "tenant_a")
	m.Acquire("role.revoked", "tenant_a")

	// tenant_a is maxed.
	if m.Acquire("role.revoked", "tenant_a") {
		t.Fatal("tenant_a should be blocked at max concurrency")
	}

	// tenant_b is unaffected.
	if !m.Acquire("role.revoked", "tenant_b") {
		t.Fatal("tenant_b should not be affected by tenant_a's limits")
	}

	m.Release("role.revoked", "tenant_a")
	m.Release("role.revoked", "tenant_a")
	m.Release("role.revoked", "tenant_b")
}

func TestManager_TenantActiveCount(t *testing.T) {
	m := NewManager(Config{Event: event.RoleAssignedName, MaxConcurrency: 10})
	m.SetTenantConfig(TenantConfig{
		Event:          event.RoleAssignedName,
		TenantID:       "t1",
		MaxConcurrency: 5,
	})

	m.Acquire("role.assigned", "t1")
	m.Acquire("role.assigned", "t1")

	if got := m.TenantActiveCount(event.RoleAssignedName, "t1"); got != 2 {
		t.Fatalf("expected tenant active 2, got %d", got)
	}

	m.Release("role.assigned", "t1")
	if got := m.TenantActiveCount(event.RoleAssignedName, "t1"); got != 1 {
		t.Fatalf("expected tenant active 1, got %d", got)
	}
}

// ---------------------------------------------------------------------------
// Dynamic reconfiguration
// ---------------------------------------------------------------------------

func TestManager_SetConfig(t *testing.T) {
	m := NewManager(Config{
		Event:          event.PermissionGrantedName,
		MaxConcurrency: 1,
	})

	m.Acquire("permission.granted", "")
	if m.Acquire("permission.granted", "") {
		t.Fatal("should be blocked at concurrency 1")
	}

	// Raise the limit dynamically.
	m.SetConfig(Config{
		Event:          event.PermissionGrantedName,
		MaxConcurrency: 3,
	})

	// Now should succeed.
	if !m.Acquire("permission.granted", "") {
		t.Fatal("should succeed after raising concurrency")
	}
	m.Release("permission.granted", "")
	m.Release("permission.granted", "")
}

// ---------------------------------------------------------------------------
// Concurrency safety
// ---------------------------------------------------------------------------

func TestManager_ConcurrentAccess(t *testing.T) {
	m := NewManager(Config{
		Event:          event.UserDeletedName,
		MaxConcurrency: 50,
	})

	var acquired atomic.Int64
	var wg sync.WaitGroup

	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.Acquire("user.deleted", "") {
				acquired.Add(1)
				// Simulate work.
				time.Sleep(time.Millisecond)
				m.Release("user.deleted", "")
			}
		}()
	}

	wg.Wait()

	// At least some should have succeeded.
	if acquired.Load() == 0 {
		t.Fatal("expected some Acquires to succeed")
	}

	// Active should be back to 0.
	if m.ActiveCount(event.UserDeletedName) != 0 {
		t.Fatalf("expected 0 active after all goroutines, got %d", m.ActiveCount(event.UserDeletedName))
	}
}

func TestManager_UnconfiguredEvent_AlwaysSucceeds(t *testing.T) {
	m := NewManager(Config{
		Event:          event.RoleCreatedName,
		MaxConcurrency: 1,
	})

	// role.deleted has no config and therefore no limits.
	for range 10 {
		if !m.Acquire("role.deleted", "") {
			t.Fatal("unconfigured event should always allow Acquire")
		}
	}
	for range 10 {
		m.Release("role.deleted", "")
	}
}

func TestManager_ReleaseUnderflow(t *testing.T) {
	m := NewManager(Config{
		Event:          event.RoleAssignedName,
		MaxConcurrency: 5,
	})

	// Release without Acquire should not go negative.
	m.Release("role.assigned", "")
	if m.ActiveCount(event.RoleAssignedName) != 0 {
		t.Fatal("active count should not go below 0")
	}
}

func TestManager_FullSlotDoesNotSpendRate(t *testing.T) {
	m := NewManager(Config{
		Event:          event.RoleAssignedName,
		MaxConcurrency: 1,
		RateLimit:      0.001,
		RateBurst:      2,
	})

	if !m.Acquire("role.assigned", "") {
		t.Fatal("first Acquire should succeed")
	}
	// Refused for concurrency; the second burst token must survive.
	if m.Acquire("role.assigned", "") {
		t.Fatal("second Acquire should fail (max concurrency 1)")
	}
	m.Release("role.assigned", "")
	if !m.Acquire("role.assigned", "") {
		t.Fatal("Acquire should succeed with the remaining burst token")
	}
}
