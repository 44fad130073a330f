// Package event defines the immutable domain facts published through
// Eventbus, the delivery metadata tracked per publish attempt, the handler
// registry, and the simple in-process bus used for low-stakes notifications.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/eventbus"
	"github.com/xraph/eventbus/id"
)

// Event is an immutable record of a fact that already happened. Handlers
// share the same *Event and must not mutate it.
type Event struct {
	ID         id.EventID      `json:"id" msgpack:"id"`
	Name       Name            `json:"name" msgpack:"name"`
	OccurredAt time.Time       `json:"occurred_at" msgpack:"occurred_at"`
	TenantID   string          `json:"tenant_id,omitempty" msgpack:"tenant_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty" msgpack:"payload,omitempty"`
}

// Payload is implemented by every typed event body. The method set ties a
// payload type to exactly one event name.
type Payload interface {
	EventName() Name
}

// tenantScoped is implemented by payloads that belong to a tenant.
type tenantScoped interface {
	Tenant() string
}

// New builds an Event from a typed payload, assigning a fresh ID and the
// current time.
func New[P Payload](p P) (*Event, error) {
	name := p.EventName()
	if !name.Known() {
		return nil, fmt.Errorf("%w: %q", eventbus.ErrUnknownEvent, name)
	}

	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal payload for %q: %w", name, err)
	}

	evt := &Event{
		ID:         id.NewEventID(),
		Name:       name,
		OccurredAt: time.Now().UTC(),
		Payload:    body,
	}
	if ts, ok := any(p).(tenantScoped); ok {
		evt.TenantID = ts.Tenant()
	}
	return evt, nil
}

// Decode unmarshals the event payload into P. It fails when the event
// carries a different name than P declares.
func Decode[P Payload](evt *Event) (P, error) {
	var p P
	if evt == nil {
		return p, eventbus.ErrNilEvent
	}
	if want := p.EventName(); evt.Name != want {
		return p, fmt.Errorf("decode %q as %q: name mismatch", evt.Name, want)
	}
	if len(evt.Payload) > 0 {
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return p, fmt.Errorf("unmarshal payload for %q: %w", evt.Name, err)
		}
	}
	return p, nil
}
