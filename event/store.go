package event

import (
	"context"
	"time"

	"github.com/xraph/eventbus/id"
)

// Store defines the persistence contract for published events and their
// delivery metadata. List reads return newest first, use the store's
// default when limit <= 0, and skip records that have already expired.
type Store interface {
	// SaveEvent writes the event body and metadata with a shared expiry and
	// indexes the delivery ID by event name and by status.
	SaveEvent(ctx context.Context, evt *Event, meta *Metadata) error

	// UpdateEventMetadata rewrites the metadata for deliveryID. When the
	// status changed, the ID moves between status indexes atomically.
	UpdateEventMetadata(ctx context.Context, deliveryID id.DeliveryID, meta *Metadata) error

	// GetEvent returns the event and metadata stored under deliveryID.
	GetEvent(ctx context.Context, deliveryID id.DeliveryID) (*Envelope, error)

	// GetEventsByName lists deliveries of the named event.
	GetEventsByName(ctx context.Context, name Name, limit int) ([]*Envelope, error)

	// GetPendingEvents lists deliveries currently Pending.
	GetPendingEvents(ctx context.Context, limit int) ([]*Envelope, error)

	// GetFailedEvents lists deliveries currently Failed.
	GetFailedEvents(ctx context.Context, limit int) ([]*Envelope, error)

	// ClearOldEvents deletes every delivery published before olderThan,
	// including its event body and index entries, and returns how many
	// were removed. Dead letter entries are not touched.
	ClearOldEvents(ctx context.Context, olderThan time.Time) (int, error)

	// Stats returns per-status counts and the dead letter queue size.
	Stats(ctx context.Context) (Stats, error)
}

// Stats summarises the contents of a Store.
type Stats struct {
	Pending      int64 `json:"pending"`
	Processing   int64 `json:"processing"`
	Completed    int64 `json:"completed"`
	Failed       int64 `json:"failed"`
	DeadLettered int64 `json:"dead_lettered"`
}
