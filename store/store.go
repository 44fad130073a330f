// Package store defines the aggregate persistence interface. The event
// and dlq packages each define their own store interface and the
// composite Store composes them. Backends: Redis and Memory, plus the
// guard wrapper that degrades any backend to logged no-ops while it is
// unreachable.
package store

import (
	"context"

	"github.com/xraph/eventbus/dlq"
	"github.com/xraph/eventbus/event"
)

// Store is the aggregate persistence interface.
// A single backend implements every subsystem contract.
type Store interface {
	event.Store
	dlq.Store

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
