// Package ext defines the extension system for Eventbus.
//
// Extensions are notified of delivery lifecycle events and can react to
// them by recording metrics or writing audit logs. Each lifecycle hook is a
// separate interface so extensions opt in only to the events they care
// about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	// Opt in to specific hooks by implementing their interfaces.
//	func (e *MyExtension) OnEventCompleted(ctx context.Context, evt *event.Event, meta *event.Metadata, elapsed time.Duration) error {
//	    log.Printf("%s delivered in %s", evt.Name, elapsed)
//	    return nil
//	}
//
// # Delivery Lifecycle Hooks
//
//   - [EventPublished]: the event was persisted, broadcast and queued
//   - [EventReceived]: another instance's broadcast was accepted
//   - [EventStarted]: a worker began delivering it
//   - [EventCompleted]: every handler succeeded
//   - [EventFailed]: a delivery attempt failed
//   - [EventRetrying]: a failed attempt was scheduled for retry
//   - [EventDeadLettered]: retries were exhausted
//
// # Other Hooks
//
//   - [SweepCompleted]: the periodic old-event sweep ran
//   - [Shutdown]: the engine is shutting down gracefully
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface. Hook errors are logged and
// never stop delivery.
package ext
