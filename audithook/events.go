package audithook

// Delivery audit actions. Each constant corresponds to one ext lifecycle
// hook and becomes the Action field of the audit event.
const (
	ActionEventPublished    = "eventbus.published"
	ActionEventCompleted    = "eventbus.completed"
	ActionEventFailed       = "eventbus.failed"
	ActionEventRetrying     = "eventbus.retrying"
	ActionEventDeadLettered = "eventbus.dead_lettered"
	ActionSweepCompleted    = "eventbus.swept"
)

// Audit event categories group related actions. Identity events use
// "identity." followed by their resource.
const (
	CategoryDelivery = "eventbus.delivery"
	CategoryStore    = "eventbus.store"
	categoryIdentity = "identity."
)

// Resource types used as the Resource field in delivery audit events.
const (
	ResourceDelivery = "delivery"
	ResourceStore    = "event_store"
)

// AllActions returns every delivery action the extension can emit.
func AllActions() []string {
	return []string{
		ActionEventPublished,
		ActionEventCompleted,
		ActionEventFailed,
		ActionEventRetrying,
		ActionEventDeadLettered,
		ActionSweepCompleted,
	}
}
