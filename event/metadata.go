package event

import (
	"time"

	"github.com/xraph/eventbus/id"
)

// Status is the delivery state of one publish attempt.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusPending, StatusProcessing, StatusCompleted, StatusFailed}

// Metadata tracks the delivery of one publish attempt. Only the dispatcher
// mutates it. A replay from the dead letter queue creates a new Metadata
// with its own ID.
type Metadata struct {
	ID          id.DeliveryID `json:"id" msgpack:"id"`
	EventName   Name          `json:"event_name" msgpack:"event_name"`
	Origin      string        `json:"origin" msgpack:"origin"`
	PublishedAt time.Time     `json:"published_at" msgpack:"published_at"`
	ProcessedAt *time.Time    `json:"processed_at,omitempty" msgpack:"processed_at,omitempty"`
	Status      Status        `json:"status" msgpack:"status"`
	RetryCount  int           `json:"retry_count" msgpack:"retry_count"`
	Error       string        `json:"error,omitempty" msgpack:"error,omitempty"`
}

// NewMetadata returns Pending metadata for a fresh publish attempt of name
// originating from the given instance.
func NewMetadata(name Name, origin string) *Metadata {
	return &Metadata{
		ID:          id.NewDeliveryID(),
		EventName:   name,
		Origin:      origin,
		PublishedAt: time.Now().UTC(),
		Status:      StatusPending,
	}
}

// Clone returns a deep copy.
func (m *Metadata) Clone() *Metadata {
	if m == nil {
		return nil
	}
	c := *m
	if m.ProcessedAt != nil {
		t := *m.ProcessedAt
		c.ProcessedAt = &t
	}
	return &c
}

// MarkProcessing moves the attempt to Processing at now.
func (m *Metadata) MarkProcessing(now time.Time) {
	m.Status = StatusProcessing
	m.ProcessedAt = &now
}

// MarkCompleted moves the attempt to Completed and clears any earlier error.
func (m *Metadata) MarkCompleted() {
	m.Status = StatusCompleted
	m.Error = ""
}

// MarkFailed moves the attempt to Failed and records err.
func (m *Metadata) MarkFailed(err error) {
	m.Status = StatusFailed
	if err != nil {
		m.Error = err.Error()
	}
}

// MarkRetrying returns a Failed attempt to Pending and counts the retry.
func (m *Metadata) MarkRetrying() {
	m.RetryCount++
	m.Status = StatusPending
}

// Envelope is the unit carried on the distribution channel and returned by
// store reads: an event together with one attempt's metadata.
type Envelope struct {
	Event    *Event    `json:"event" msgpack:"event"`
	Metadata *Metadata `json:"metadata" msgpack:"metadata"`
}
