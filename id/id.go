// Package id defines TypeID-based identity types for all Eventbus entities.
//
// Every entity uses a single ID struct with a prefix that identifies the
// entity type. IDs are K-sortable (UUIDv7-based), globally unique, and
// URL-safe in the format "prefix_suffix". Because the suffix embeds a
// millisecond timestamp followed by random bits, a delivery ID carries both
// the time it was minted and a random component.
package id

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

// Prefix constants for all Eventbus entity types.
const (
	PrefixEvent    Prefix = "evt"
	PrefixDelivery Prefix = "dlv"
	PrefixDLQ      Prefix = "dlq"
	PrefixInstance Prefix = "inst"
)

// ID is the primary identifier type for all Eventbus entities.
// It wraps a TypeID providing a prefix-qualified, globally unique,
// sortable, URL-safe identifier in the format "prefix_suffix".
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for decoding.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new globally unique ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}

	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string (e.g., "dlv_01h2xcejqtf2nbrexx3vqjhp41")
// into an ID. Returns an error if the string is not valid.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}

	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses a TypeID string and validates that its prefix
// matches the expected value.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}

	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}

	return parsed, nil
}

// MustParse is like Parse but panics on error. Use for hardcoded ID values.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}

	return parsed
}

// EventID identifies an Event (prefix: "evt").
type EventID = ID

// DeliveryID identifies one publish attempt's delivery metadata (prefix: "dlv").
type DeliveryID = ID

// DLQID identifies a dead letter queue entry (prefix: "dlq").
type DLQID = ID

// InstanceID identifies a running engine instance (prefix: "inst").
type InstanceID = ID

// NewEventID generates a new unique event ID.
func NewEventID() ID { return New(PrefixEvent) }

// NewDeliveryID generates a new unique delivery ID.
func NewDeliveryID() ID { return New(PrefixDelivery) }

// NewDLQID generates a new unique DLQ ID.
func NewDLQID() ID { return New(PrefixDLQ) }

// NewInstanceID generates a new unique instance ID.
func NewInstanceID() ID { return New(PrefixInstance) }

// ParseEventID parses a string and validates the "evt" prefix.
func ParseEventID(s string) (ID, error) { return ParseWithPrefix(s, PrefixEvent) }

// ParseDeliveryID parses a string and validates the "dlv" prefix.
func ParseDeliveryID(s string) (ID, error) { return ParseWithPrefix(s, PrefixDelivery) }

// ParseDLQID parses a string and validates the "dlq" prefix.
func ParseDLQID(s string) (ID, error) { return ParseWithPrefix(s, PrefixDLQ) }

// ParseInstanceID parses a string and validates the "inst" prefix.
func ParseInstanceID(s string) (ID, error) { return ParseWithPrefix(s, PrefixInstance) }

// String returns the full TypeID string representation (prefix_suffix).
// Returns an empty string for the Nil ID.
func (i ID) String() string {
	if !i.valid {
		return ""
	}

	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}

	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}

	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil

		return nil
	}

	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}

	*i = parsed

	return nil
}

// EncodeMsgpack implements msgpack.CustomEncoder. IDs travel as their
// string form so both codecs produce the same identifiers.
func (i ID) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeString(i.String())
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (i *ID) DecodeMsgpack(dec *msgpack.Decoder) error {
	s, err := dec.DecodeString()
	if err != nil {
		return err
	}

	return i.UnmarshalText([]byte(s))
}
