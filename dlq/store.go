package dlq

import (
	"context"

	"github.com/xraph/eventbus/id"
)

// ListOpts controls pagination for DLQ list queries.
type ListOpts struct {
	// Limit is the maximum number of entries to return. Zero means no limit.
	Limit int
	// Offset is the number of entries to skip.
	Offset int
}

// Store defines the persistence contract for the dead letter queue.
// Entries are kept for twice the normal event retention.
type Store interface {
	// PushDLQ adds an entry to the dead letter queue.
	PushDLQ(ctx context.Context, entry *Entry) error

	// ListDLQ returns entries newest first.
	ListDLQ(ctx context.Context, opts ListOpts) ([]*Entry, error)

	// RemoveDLQ deletes an entry. Removing a missing entry is not an error.
	RemoveDLQ(ctx context.Context, entryID id.DLQID) error

	// CountDLQ returns the total number of entries in the dead letter queue.
	CountDLQ(ctx context.Context) (int64, error)
}
