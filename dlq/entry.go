package dlq

import (
	"time"

	"github.com/xraph/eventbus/event"
	"github.com/xraph/eventbus/id"
)

// Entry represents an event delivery that exhausted its retry budget and
// was moved to the dead letter queue for inspection or replay.
type Entry struct {
	ID       id.DLQID        `json:"id" msgpack:"id"`
	Event    *event.Event    `json:"event" msgpack:"event"`
	Metadata *event.Metadata `json:"metadata" msgpack:"metadata"`
	Error    string          `json:"error" msgpack:"error"`
	FailedAt time.Time       `json:"failed_at" msgpack:"failed_at"`
}

// NewEntry builds an entry for a terminal failure of meta.
func NewEntry(evt *event.Event, meta *event.Metadata, cause error) *Entry {
	e := &Entry{
		ID:       id.NewDLQID(),
		Event:    evt,
		Metadata: meta.Clone(),
		FailedAt: time.Now().UTC(),
	}
	switch {
	case cause != nil:
		e.Error = cause.Error()
	case meta != nil:
		e.Error = meta.Error
	}
	return e
}
