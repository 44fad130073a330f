package redis

import "github.com/xraph/eventbus/event"

// Redis key naming conventions for eventbus data. All keys carry the
// configured prefix ("eventbus:" by default) to avoid collisions.
type keys struct {
	prefix string
}

// ── Event keys ──

// event returns the key for an event body: eventbus:event:{deliveryID}
func (k keys) event(deliveryID string) string { return k.prefix + "event:" + deliveryID }

// meta returns the key for delivery metadata: eventbus:meta:{deliveryID}
func (k keys) meta(deliveryID string) string { return k.prefix + "meta:" + deliveryID }

// metaPattern matches every metadata key for SCAN.
func (k keys) metaPattern() string { return k.prefix + "meta:*" }

// byName returns the index list for an event name: eventbus:index:name:{name}
func (k keys) byName(name event.Name) string { return k.prefix + "index:name:" + string(name) }

// byStatus returns the index list for a status: eventbus:index:status:{status}
func (k keys) byStatus(st event.Status) string { return k.prefix + "index:status:" + string(st) }

// ── DLQ keys ──

// dlq returns the key for a DLQ entry: eventbus:dlq:{id}
func (k keys) dlq(entryID string) string { return k.prefix + "dlq:" + entryID }

// dlqAll is the list tracking DLQ entry IDs newest first.
func (k keys) dlqAll() string { return k.prefix + "dlq:all" }
