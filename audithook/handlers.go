package audithook

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xraph/eventbus/event"
)

// Register subscribes an audit handler for every identity event on r.
// Each handler turns the event into an AuditEvent whose Action is the
// event name and whose Resource is the part before the first dot.
//
// The handlers are meant for the simple event.Bus: recording failures are
// returned so the bus logs them, and nothing is retried.
func Register(r *event.Registry, rec Recorder) error {
	for _, name := range event.All() {
		if err := r.Add(name, Handler(rec)); err != nil {
			return err
		}
	}
	return nil
}

// Handler returns an event handler that records evt as an audit event.
func Handler(rec Recorder) event.HandlerFunc {
	return func(ctx context.Context, evt *event.Event) error {
		a, err := FromEvent(evt)
		if err != nil {
			return err
		}
		return rec.Record(ctx, a)
	}
}

// FromEvent maps an identity event to its audit record.
func FromEvent(evt *event.Event) (*AuditEvent, error) {
	if evt == nil {
		return nil, fmt.Errorf("audithook: nil event")
	}

	fields := map[string]any{}
	if len(evt.Payload) > 0 {
		if err := json.Unmarshal(evt.Payload, &fields); err != nil {
			return nil, fmt.Errorf("audithook: decode %s payload: %w", evt.Name, err)
		}
	}

	resource, _, _ := strings.Cut(evt.Name.String(), ".")
	fields["event_id"] = evt.ID.String()
	fields["occurred_at"] = evt.OccurredAt

	return &AuditEvent{
		Action:     evt.Name.String(),
		Resource:   resource,
		Category:   categoryIdentity + resource,
		ResourceID: resourceID(resource, fields),
		TenantID:   evt.TenantID,
		Metadata:   fields,
		Outcome:    OutcomeSuccess,
		Severity:   severityOf(evt.Name),
	}, nil
}

// resourceID picks the identifier of the resource the event is about.
// Permissions are attached to roles, so they report the role.
func resourceID(resource string, fields map[string]any) string {
	key := resource + "_id"
	if resource == "permission" {
		key = "role_id"
	}
	s, _ := fields[key].(string)
	return s
}

func severityOf(name event.Name) string {
	switch name {
	case event.UserDeletedName, event.TenantDeletedName, event.RoleDeletedName,
		event.RoleRevokedName, event.PermissionRevokedName:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}
