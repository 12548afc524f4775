package events

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Envelope is the common structure wrapping every profile-change event on the
// bus. The payload shape is event-type specific and is decoded by the handler
// that the topic dispatches to.
type Envelope struct {
	// Topic must match the bus topic the message arrived on
	Topic string `json:"topic"`

	// Originator identifies the producing system
	Originator string `json:"originator"`

	// Timestamp is when the event occurred
	Timestamp Timestamp `json:"timestamp"`

	// MimeType describes the payload encoding
	MimeType string `json:"mime-type"`

	// Payload contains the event-specific data
	Payload json.RawMessage `json:"payload"`
}

// ParsePayload unmarshals the payload into the provided type.
func (e *Envelope) ParsePayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// Timestamp accepts both RFC 3339 strings and epoch-millisecond numbers.
// Producers have historically emitted both encodings.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON decodes a timestamp from either encoding.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
		t.Time = parsed
		return nil
	}

	millis, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp %s: %w", data, err)
	}
	t.Time = time.UnixMilli(millis).UTC()
	return nil
}

// MarshalJSON encodes the timestamp as an RFC 3339 string.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}
