package station

import (
	"context"
	"testing"
	"time"

	"github.com/data-tracks/DataTracks/plan"
	"github.com/data-tracks/DataTracks/value"
)

func mustWagon(t *testing.T, entries ...value.WagonEntry) value.Wagon {
	t.Helper()
	w, err := value.NewWagon(entries...)
	if err != nil {
		t.Fatalf("NewWagon: %v", err)
	}
	return w
}

func TestStationPassThrough(t *testing.T) {
	src := NewLine("in", 4)
	sink := NewLine("out", 4)
	s := New("passthrough", []*Line{src}, []*Line{sink})

	if err := s.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(time.Second)

	w := mustWagon(t, value.WagonEntry{LineID: 1, Value: value.NewInt(42)})
	train := value.NewTrain(value.NewTime(0, 0), 1, []value.Wagon{w})

	if err := src.Send(ctx, train); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case out := <-sink.Receive():
		if out.Len() != 1 {
			t.Fatalf("expected 1 wagon, got %d", out.Len())
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for train on sink")
	}
}

func TestStationLayoutMismatchRoutesToDeadLetter(t *testing.T) {
	src := NewLine("in", 4)
	sink := NewLine("out", 4)
	dead := NewLine("dead", 4)

	layout := NewLayout(&plan.LayoutSpec{Fields: []plan.LayoutField{
		{Name: "required-field", LineID: 99, Required: true},
	}})

	s := New("layout-checked", []*Line{src}, []*Line{sink}, WithLayout(layout), WithDeadLetter(dead))
	if err := s.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(time.Second)

	w := mustWagon(t, value.WagonEntry{LineID: 1, Value: value.NewInt(1)})
	train := value.NewTrain(value.NewTime(0, 0), 1, []value.Wagon{w})
	if err := src.Send(ctx, train); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case <-dead.Receive():
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for train on dead-letter line")
	}

	select {
	case <-sink.Receive():
		t.Fatal("did not expect the mismatched train to reach the sink")
	case <-time.After(50 * time.Millisecond):
	}
}
