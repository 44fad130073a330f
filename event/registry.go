package event

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/xraph/eventbus"
)

// HandlerFunc is a type-erased event handler. Typed handlers registered
// through Subscribe are converted to a HandlerFunc that decodes the payload
// before calling them.
type HandlerFunc func(ctx context.Context, evt *Event) error

// Registry maps event names to an ordered list of handlers. Registration
// order is preserved but handlers for one event run concurrently, so the
// order is not an execution order. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[Name][]HandlerFunc
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[Name][]HandlerFunc),
	}
}

// Add appends fn to the handlers for name. Adding the same function twice
// registers it twice. Unknown names are rejected with ErrUnknownEvent.
func (r *Registry) Add(name Name, fn HandlerFunc) error {
	if !name.Known() {
		return fmt.Errorf("%w: %q", eventbus.ErrUnknownEvent, name)
	}
	if fn == nil {
		return fmt.Errorf("event: nil handler for %q", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = append(r.handlers[name], fn)
	return nil
}

// Subscribe registers a typed handler for the event name declared by P.
//
// This is a package-level generic function because Go does not allow
// generic methods on non-generic receiver types.
func Subscribe[P Payload](r *Registry, fn func(ctx context.Context, evt *Event, payload P) error) error {
	var zero P
	return r.Add(zero.EventName(), func(ctx context.Context, evt *Event) error {
		p, err := Decode[P](evt)
		if err != nil {
			return err
		}
		return fn(ctx, evt, p)
	})
}

// Handlers returns a copy of the handlers registered for name. Unknown or
// unsubscribed names yield an empty slice.
func (r *Registry) Handlers(name Name) []HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.handlers[name])
}

// Count returns the total number of registered handlers across all names.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, hs := range r.handlers {
		n += len(hs)
	}
	return n
}

// Names returns the names that have at least one handler, sorted.
func (r *Registry) Names() []Name {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]Name, 0, len(r.handlers))
	for name, hs := range r.handlers {
		if len(hs) > 0 {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}
