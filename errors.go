package eventbus

import "errors"

var (
	// Publish errors.
	ErrNilEvent     = errors.New("eventbus: nil event")
	ErrUnknownEvent = errors.New("eventbus: unknown event name")
	ErrNotRunning   = errors.New("eventbus: engine not running")

	// Not found errors.
	ErrEventNotFound = errors.New("eventbus: event not found")
	ErrDLQNotFound   = errors.New("eventbus: dlq entry not found")

	// Worker pool errors.
	ErrPoolStopped = errors.New("eventbus: worker pool stopped")
	ErrQueueFull   = errors.New("eventbus: work queue full")

	// Infrastructure errors.
	ErrInvalidConfig     = errors.New("eventbus: invalid config")
	ErrChannelClosed     = errors.New("eventbus: distribution channel closed")
	ErrStoreUnavailable  = errors.New("eventbus: backing store unavailable")
	ErrMalformedEnvelope = errors.New("eventbus: malformed envelope")
)
