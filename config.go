package eventbus

import (
	"fmt"
	"time"
)

// Config holds configuration for the event dispatch engine.
type Config struct {
	// InstanceID identifies this process on the distribution channel.
	// Broadcasts carrying this origin are not re-processed locally.
	// Empty means a fresh instance ID is generated at engine construction.
	InstanceID string

	// MaxRetries is how many times a failed delivery is retried before the
	// event is moved to the dead letter queue.
	MaxRetries int

	// RetryDelay is the base delay fed into the backoff strategy.
	RetryDelay time.Duration

	// RetryBackoff names the backoff strategy: "linear", "constant",
	// "exponential" or "exponential_jitter".
	RetryBackoff string

	// MaxRetryDelay caps the computed retry delay. Zero means uncapped.
	MaxRetryDelay time.Duration

	// Concurrency is the number of worker goroutines delivering events.
	Concurrency int

	// QueueSize bounds the local work queue. Publish blocks when it is full.
	QueueSize int

	// EventTTL is the expiry applied to stored events and their metadata.
	// Dead letter entries are kept for twice as long.
	EventTTL time.Duration

	// DLQMaxSize bounds the dead letter queue. Inserting beyond it evicts
	// the oldest entry.
	DLQMaxSize int

	// ChannelName is the pub/sub channel shared by all instances.
	ChannelName string

	// KeyPrefix namespaces every key written to the backing store.
	KeyPrefix string

	// Codec names the serialization used on the channel and in the store:
	// "json" or "msgpack".
	Codec string

	// SweepSchedule is a cron expression (or descriptor like "@every 1h")
	// for the old-event sweep. Empty disables the sweep.
	SweepSchedule string

	// SweepRetention is how old an event must be before the sweep deletes it.
	SweepRetention time.Duration

	// HandlerTimeout bounds a single handler invocation. Zero means no limit.
	HandlerTimeout time.Duration

	// ShutdownTimeout is the maximum time Stop waits for in-flight handlers
	// when the caller's context carries no deadline.
	ShutdownTimeout time.Duration

	// DefaultListLimit is used by store list queries when limit <= 0.
	DefaultListLimit int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:       3,
		RetryDelay:       1 * time.Second,
		RetryBackoff:     "linear",
		Concurrency:      10,
		QueueSize:        1024,
		EventTTL:         7 * 24 * time.Hour,
		DLQMaxSize:       1000,
		ChannelName:      "eventbus:events",
		KeyPrefix:        "eventbus:",
		Codec:            "json",
		SweepSchedule:    "@every 1h",
		SweepRetention:   7 * 24 * time.Hour,
		ShutdownTimeout:  30 * time.Second,
		DefaultListLimit: 100,
	}
}

// DLQTTL is the retention applied to dead letter entries.
func (c Config) DLQTTL() time.Duration { return 2 * c.EventTTL }

// Validate reports the first invalid field, wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	switch {
	case c.MaxRetries < 0:
		return fmt.Errorf("%w: max retries must be >= 0", ErrInvalidConfig)
	case c.RetryDelay < 0:
		return fmt.Errorf("%w: retry delay must be >= 0", ErrInvalidConfig)
	case c.Concurrency <= 0:
		return fmt.Errorf("%w: concurrency must be > 0", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue size must be > 0", ErrInvalidConfig)
	case c.EventTTL <= 0:
		return fmt.Errorf("%w: event ttl must be > 0", ErrInvalidConfig)
	case c.DLQMaxSize <= 0:
		return fmt.Errorf("%w: dlq max size must be > 0", ErrInvalidConfig)
	case c.ChannelName == "":
		return fmt.Errorf("%w: channel name is required", ErrInvalidConfig)
	}
	switch c.Codec {
	case "", "json", "msgpack":
	default:
		return fmt.Errorf("%w: unknown codec %q", ErrInvalidConfig, c.Codec)
	}
	switch c.RetryBackoff {
	case "", "linear", "constant", "exponential", "exponential_jitter":
	default:
		return fmt.Errorf("%w: unknown retry backoff %q", ErrInvalidConfig, c.RetryBackoff)
	}
	return nil
}
