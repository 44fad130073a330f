package codec_test

import (
	"errors"
	"testing"
	"time"

	"github.com/xraph/eventbus/codec"
	"github.com/xraph/eventbus/event"
)

func TestGet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"json", codec.NameJSON},
		{"msgpack", codec.NameMsgpack},
		{"", codec.NameJSON},
		{"protobuf", codec.NameJSON},
	}
	for _, tt := range tests {
		if got := codec.Get(tt.in).Name(); got != tt.want {
			t.Errorf("Get(%q).Name() = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	t.Parallel()

	evt, err := event.New(event.UserCreated{UserID: "u1", TenantID: "t1", Email: "u1@example.com"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	meta := event.NewMetadata(evt.Name, "inst_a")
	meta.MarkProcessing(time.Now().UTC())
	meta.MarkFailed(errors.New("smtp down"))
	meta.MarkRetrying()

	for _, c := range []codec.Codec{codec.JSON{}, codec.Msgpack{}} {
		t.Run(c.Name(), func(t *testing.T) {
			t.Parallel()

			data, err := c.Marshal(&event.Envelope{Event: evt, Metadata: meta})
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}

			var got event.Envelope
			if err := c.Unmarshal(data, &got); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}

			if got.Event.ID != evt.ID {
				t.Errorf("event ID = %s, want %s", got.Event.ID, evt.ID)
			}
			if got.Event.Name != evt.Name || got.Event.TenantID != evt.TenantID {
				t.Errorf("event = %+v", got.Event)
			}
			if !got.Event.OccurredAt.Equal(evt.OccurredAt) {
				t.Errorf("OccurredAt = %v, want %v", got.Event.OccurredAt, evt.OccurredAt)
			}
			if string(got.Event.Payload) != string(evt.Payload) {
				t.Errorf("Payload = %s, want %s", got.Event.Payload, evt.Payload)
			}

			m := got.Metadata
			if m.ID != meta.ID || m.Origin != meta.Origin || m.EventName != meta.EventName {
				t.Errorf("metadata = %+v", m)
			}
			if m.Status != event.StatusPending || m.RetryCount != 1 || m.Error != "smtp down" {
				t.Errorf("metadata state = %s/%d/%q", m.Status, m.RetryCount, m.Error)
			}
			if m.ProcessedAt == nil || !m.ProcessedAt.Equal(*meta.ProcessedAt) {
				t.Errorf("ProcessedAt = %v, want %v", m.ProcessedAt, meta.ProcessedAt)
			}

			p, err := event.Decode[event.UserCreated](got.Event)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if p.Email != "u1@example.com" {
				t.Errorf("Email = %q", p.Email)
			}
		})
	}
}

func TestUnmarshalGarbage(t *testing.T) {
	t.Parallel()

	for _, c := range []codec.Codec{codec.JSON{}, codec.Msgpack{}} {
		var env event.Envelope
		if err := c.Unmarshal([]byte("\xc1not valid"), &env); err == nil {
			t.Errorf("%s: expected error for garbage input", c.Name())
		}
	}
}
