package wire

import (
	"testing"

	"github.com/data-tracks/DataTracks/value"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	msg := NewMessage(value.NewInt(42), 12345, "events", "queues")

	data, err := Encode(msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if got.Timestamp != msg.Timestamp {
		t.Fatalf("timestamp mismatch: got %d, want %d", got.Timestamp, msg.Timestamp)
	}
	if len(got.Topics) != 2 || got.Topics[0] != "events" || got.Topics[1] != "queues" {
		t.Fatalf("topics mismatch: got %v", got.Topics)
	}
	n, ok := got.Payload.Int()
	if !ok || n != 42 {
		t.Fatalf("payload mismatch: got %v ok=%v", n, ok)
	}
}

func TestDecodeRejectsMalformedEnvelope(t *testing.T) {
	if _, err := Decode([]byte("not json")); err == nil {
		t.Fatal("expected Decode to reject malformed JSON")
	}
}
