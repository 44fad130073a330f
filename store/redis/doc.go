// Package redis implements store.Store on Redis strings and lists.
//
// Every delivery is written as two string keys with a shared expiry, the
// event body and its metadata, both keyed by the delivery ID. Two list
// indexes track delivery IDs newest first: one per event name and one per
// status. Status changes move the ID between status lists inside a
// MULTI/EXEC transaction. Dead letter entries live in their own namespace
// with twice the event expiry and a single index list trimmed to the
// configured bound.
//
// Values are serialized with the configured codec (JSON by default).
//
// The caller owns the Redis client lifecycle. Close never closes it:
//
//	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})
//	s := redisstore.New(client, redisstore.WithTTL(7*24*time.Hour))
//	if err := s.Ping(ctx); err != nil { ... }
package redis
