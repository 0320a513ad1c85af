package egress

import (
	"testing"

	"github.com/data-tracks/DataTracks/value"
)

func TestChannelBindingPublishAndSubscribe(t *testing.T) {
	b := NewChannelBinding(2)
	w, err := value.NewWagon(value.WagonEntry{LineID: 3, Value: value.NewText("hi")})
	if err != nil {
		t.Fatalf("NewWagon: %v", err)
	}
	train := value.NewTrain(value.NewTime(500, 0), 3, []value.Wagon{w})

	if err := b.Publish(train); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case got := <-b.Subscribe():
		if got.OriginLine != 3 {
			t.Fatalf("expected origin line 3, got %d", got.OriginLine)
		}
	default:
		t.Fatal("expected a train on the subscribe channel")
	}
}

func TestChannelBindingDropsOnFull(t *testing.T) {
	b := NewChannelBinding(1)
	w, _ := value.NewWagon(value.WagonEntry{LineID: 1, Value: value.NewInt(1)})
	train := value.NewTrain(value.NewTime(0, 0), 1, []value.Wagon{w})

	if err := b.Publish(train); err != nil {
		t.Fatalf("first Publish: %v", err)
	}
	if err := b.Publish(train); err == nil {
		t.Fatal("expected second Publish to a full channel binding to fail")
	}
}
