// Package broadcast defines the distribution channel: the single shared
// publish/subscribe channel every running instance listens on. Each
// publish is fanned out to all subscribers, the publishing instance
// included; receivers decide what to ignore.
package broadcast

import (
	"context"

	"github.com/xraph/eventbus/event"
)

// Handler receives one decoded envelope. Handlers run on the channel's
// receive goroutine and should hand work off quickly.
type Handler func(ctx context.Context, env *event.Envelope)

// Channel is the distribution channel contract.
type Channel interface {
	// Publish sends env to every subscriber of the channel.
	Publish(ctx context.Context, env *event.Envelope) error

	// Subscribe starts delivering incoming envelopes to fn in the
	// background. It returns once the subscription is confirmed.
	// Undecodable messages are logged and dropped.
	Subscribe(ctx context.Context, fn Handler) error

	// Connected reports whether the channel is currently usable.
	Connected() bool

	// Close stops the subscription and waits for the receive loop to exit.
	Close() error
}
