// Package dlq provides the dead letter queue for events whose handlers
// kept failing after every retry.
//
// When a delivery fails and its retry count has reached MaxRetries, the
// engine calls [Queue.Push] to move it into the DLQ. The event, the final
// metadata and the error message are preserved for debugging.
//
// # Entry
//
// An [Entry] captures:
//   - ID: the DLQ entry identity (dlq_ prefix)
//   - Event: the original immutable event
//   - Metadata: the delivery metadata at the time of terminal failure
//   - Error: the final error message
//   - FailedAt: when the terminal failure occurred
//
// # Queue
//
// [Queue] is bounded. Pushing into a full queue evicts exactly one entry,
// the oldest, so the size stays at the bound. Every change is mirrored to
// a [Store] so the queue can be rehydrated with [Queue.Load] after a
// restart. Mirror failures are logged and never returned.
//
//	q := dlq.NewQueue(1000, store, logger)
//	q.Push(ctx, evt, meta, err)
//
// # Replay
//
// [Queue.Replay] drains the queue and re-publishes each event as a brand
// new publish. The new delivery gets a fresh metadata ID and a zero retry
// count. Entries whose re-publish fails are put back.
package dlq
