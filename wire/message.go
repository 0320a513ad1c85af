// Package wire defines the frame exchanged with the dashboard's
// /channel/{topic} WebSocket endpoint - a single JSON/binary envelope
// carrying one Value, a timestamp, and the topics it is tagged with,
// codec-encoded via the value package's tagged-union wire format (C1).
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/data-tracks/DataTracks/value"
)

// Message is the /channel/{topic} frame: a single Value payload tagged
// with the topics it was published to, plus a timestamp in epoch
// milliseconds (the egress WebSocket driver sets it to the train's event
// time).
type Message struct {
	Payload   value.Value
	Timestamp int64
	Topics    []string
}

// NewMessage wraps a Value for publication under the given topics.
func NewMessage(payload value.Value, timestampMS int64, topics ...string) Message {
	return Message{Payload: payload, Timestamp: timestampMS, Topics: topics}
}

// wireFrame is the on-the-wire JSON shape: the Value payload is encoded
// via the binary codec and base64-embedded (through encoding/json's
// []byte handling) so every Value Kind round-trips without a second,
// JSON-specific encoding for the payload itself.
type wireFrame struct {
	Payload   []byte   `json:"payload"`
	Timestamp int64    `json:"timestamp"`
	Topics    []string `json:"topics"`
}

// Encode renders m as the JSON envelope sent over /channel/{topic}.
func Encode(m Message) ([]byte, error) {
	payload, err := value.Encode(m.Payload)
	if err != nil {
		return nil, fmt.Errorf("wire: encode payload: %w", err)
	}
	return json.Marshal(wireFrame{Payload: payload, Timestamp: m.Timestamp, Topics: m.Topics})
}

// Decode reverses Encode.
func Decode(b []byte) (Message, error) {
	var f wireFrame
	if err := json.Unmarshal(b, &f); err != nil {
		return Message{}, fmt.Errorf("wire: decode envelope: %w", err)
	}
	v, _, err := value.Decode(f.Payload)
	if err != nil {
		return Message{}, fmt.Errorf("wire: decode payload: %w", err)
	}
	return Message{Payload: v, Timestamp: f.Timestamp, Topics: f.Topics}, nil
}
