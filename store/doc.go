// Package store defines the aggregate persistence interface.
//
// The event and dlq packages define their own store interfaces. The
// composite [Store] composes them. A single backend need only implement
// Store to satisfy every persistence contract the engine uses.
//
//	type Store interface {
//	    event.Store
//	    dlq.Store
//
//	    Ping(ctx context.Context) error
//	    Close() error
//	}
//
// # Available Backends
//
//   - store/memory: in-memory store for development and testing
//   - store/redis: Redis backend (strings with expiry, index lists)
//   - store/guard: circuit-breaking wrapper around any backend
//
// # Usage
//
//	import (
//	    "github.com/xraph/eventbus/store/guard"
//	    redisstore "github.com/xraph/eventbus/store/redis"
//	)
//
//	s := guard.New(redisstore.New(client, redisstore.WithTTL(7*24*time.Hour)))
//	defer s.Close()
//
//	eng, err := engine.New(engine.WithStore(s))
//
// # Degradation
//
// The engine never lets a store failure reach the publisher. Backends
// return errors normally; the guard wrapper turns them into warnings and
// empty results while the breaker is open.
package store
