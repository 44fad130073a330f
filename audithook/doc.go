// Package audithook turns identity events and delivery lifecycle
// transitions into audit trail records.
//
// Two sources feed the same [Recorder]:
//
//   - [Register] subscribes a handler for every identity event on a
//     registry (usually the simple event.Bus), producing records such as
//     "role.assigned" on resource "role".
//   - [Extension] is an ext extension that records delivery transitions
//     (published, failed, retrying, dead-lettered) with severities from
//     info for normal operations to critical for dead-lettered events.
//
// # Usage
//
//	rec := audithook.NewLogRecorder(logger)
//	bus := event.NewBus(event.WithBusLogger(logger))
//	_ = audithook.Register(bus.Registry(), rec)
//
//	eng, _ := engine.New(engine.WithExtension(audithook.New(rec)))
//
// # Selective filtering
//
//	audithook.New(recorder,
//	    audithook.WithActions(
//	        audithook.ActionEventFailed,
//	        audithook.ActionEventDeadLettered,
//	    ),
//	)
package audithook
