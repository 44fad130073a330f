package audithook_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	ah "github.com/xraph/eventbus/audithook"
	"github.com/xraph/eventbus/event"
)

func TestFromEvent(t *testing.T) {
	tests := []struct {
		payload    event.Payload
		resource   string
		resourceID string
		severity   string
	}{
		{event.UserCreated{UserID: "u1", TenantID: "t1"}, "user", "u1", ah.SeverityInfo},
		{event.UserDeleted{UserID: "u2", TenantID: "t1"}, "user", "u2", ah.SeverityWarning},
		{event.TenantCreated{TenantID: "t1", Name: "Acme"}, "tenant", "t1", ah.SeverityInfo},
		{event.RoleAssigned{UserID: "u1", RoleID: "r1", TenantID: "t1"}, "role", "r1", ah.SeverityInfo},
		{event.RoleRevoked{UserID: "u1", RoleID: "r1", TenantID: "t1"}, "role", "r1", ah.SeverityWarning},
		{event.PermissionGranted{RoleID: "r9", TenantID: "t1", Permission: "users:read"}, "permission", "r9", ah.SeverityInfo},
	}

	for _, tt := range tests {
		t.Run(tt.payload.EventName().String(), func(t *testing.T) {
			evt, err := event.New(tt.payload)
			if err != nil {
				t.Fatalf("event.New: %v", err)
			}
			got, err := ah.FromEvent(evt)
			if err != nil {
				t.Fatalf("FromEvent: %v", err)
			}
			if got.Action != evt.Name.String() {
				t.Errorf("Action: want %q, got %q", evt.Name, got.Action)
			}
			if got.Resource != tt.resource || got.Category != "identity."+tt.resource {
				t.Errorf("Resource/Category: got %q/%q", got.Resource, got.Category)
			}
			if got.ResourceID != tt.resourceID {
				t.Errorf("ResourceID: want %q, got %q", tt.resourceID, got.ResourceID)
			}
			if got.Severity != tt.severity {
				t.Errorf("Severity: want %q, got %q", tt.severity, got.Severity)
			}
			if got.TenantID != "t1" {
				t.Errorf("TenantID: want t1, got %q", got.TenantID)
			}
			if got.Metadata["event_id"] != evt.ID.String() {
				t.Errorf("Metadata[event_id]: got %v", got.Metadata["event_id"])
			}
		})
	}
}

func TestFromEvent_Errors(t *testing.T) {
	if _, err := ah.FromEvent(nil); err == nil {
		t.Fatal("expected error for nil event")
	}
	bad := &event.Event{Name: event.UserCreatedName, Payload: json.RawMessage(`[1,2`)}
	if _, err := ah.FromEvent(bad); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

func TestRegister_OnSimpleBus(t *testing.T) {
	rec := &mockRecorder{}
	bus := event.NewBus()
	if err := ah.Register(bus.Registry(), rec); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if got := bus.Registry().Count(); got != len(event.All()) {
		t.Fatalf("expected one handler per event name, got %d", got)
	}

	evt, _ := event.New(event.UserLoggedIn{UserID: "u1", TenantID: "t1"})
	if err := bus.Publish(context.Background(), evt); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	got := rec.last()
	if got == nil || got.Action != "user.logged_in" || got.ResourceID != "u1" {
		t.Fatalf("unexpected audit record: %+v", got)
	}
}

func TestHandler_PropagatesRecorderError(t *testing.T) {
	h := ah.Handler(ah.RecorderFunc(func(context.Context, *ah.AuditEvent) error {
		return errors.New("down")
	}))
	evt, _ := event.New(event.TenantDeleted{TenantID: "t1"})
	if err := h(context.Background(), evt); err == nil {
		t.Fatal("expected recorder error to be returned to the bus")
	}
}

func TestLogRecorder(t *testing.T) {
	var buf bytes.Buffer
	rec := ah.NewLogRecorder(slog.New(slog.NewJSONHandler(&buf, nil)))

	err := rec.Record(context.Background(), &ah.AuditEvent{
		Action:   "role.revoked",
		Resource: "role",
		Severity: ah.SeverityWarning,
		Outcome:  ah.OutcomeSuccess,
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"level":"WARN"`) || !strings.Contains(out, `"action":"role.revoked"`) {
		t.Fatalf("unexpected log output: %s", out)
	}
}
