// Package codec serializes envelopes, events, metadata and dead letter
// entries for the distribution channel and the backing store.
package codec

// Codec defines the serialization contract shared by the channel and the
// store. Every codec must round-trip event.Envelope losslessly.
type Codec interface {
	// Marshal serializes v to bytes.
	Marshal(v any) ([]byte, error)

	// Unmarshal deserializes data into v.
	Unmarshal(data []byte, v any) error

	// Name returns the codec identifier ("json" or "msgpack").
	Name() string
}

// Codec name constants.
const (
	NameJSON    = "json"
	NameMsgpack = "msgpack"
)

// Get returns a codec by name. Defaults to JSON.
func Get(name string) Codec {
	switch name {
	case NameMsgpack:
		return Msgpack{}
	default:
		return JSON{}
	}
}
