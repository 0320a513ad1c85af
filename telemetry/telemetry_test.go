package telemetry

import (
	"testing"
	"time"

	"github.com/data-tracks/DataTracks/metric"
)

func TestPublishEventDeliversToSubscriber(t *testing.T) {
	b := New()
	ch, unsubscribe := b.Subscribe(TopicEvents)
	defer unsubscribe()

	b.PublishEvent(Event{Kind: EventStationOpened, Source: "station-1", Timestamp: 1})

	select {
	case data := <-ch:
		if len(data) == 0 {
			t.Fatal("expected non-empty JSON payload")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	published, dropped := b.Stats()
	if published != 1 {
		t.Fatalf("expected 1 published sample, got %d", published)
	}
	if dropped != 0 {
		t.Fatalf("expected 0 dropped samples, got %d", dropped)
	}
}

func TestPublishNeverBlocksOnFullSubscriber(t *testing.T) {
	b := New(WithBufferSize(2))
	ch, unsubscribe := b.Subscribe(TopicQueues)
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			b.PublishQueueSample(QueueSample{Name: "line-1", Size: uint32(i)})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("PublishQueueSample blocked despite a full subscriber buffer")
	}

	_, dropped := b.Stats()
	if dropped == 0 {
		t.Fatal("expected some samples to be dropped once the buffer filled")
	}

	// Drain whatever made it through; none of this should panic or hang.
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

func TestSubscribersAreIndependent(t *testing.T) {
	b := New(WithBufferSize(1))
	slow, unsubSlow := b.Subscribe(TopicEvents)
	defer unsubSlow()
	fast, unsubFast := b.Subscribe(TopicEvents)
	defer unsubFast()

	b.PublishEvent(Event{Kind: EventWalCorrupt, Source: "wal"})
	<-fast // fast subscriber drains immediately
	b.PublishEvent(Event{Kind: EventWalCorrupt, Source: "wal"})

	select {
	case <-fast:
	case <-time.After(time.Second):
		t.Fatal("fast subscriber should have received the second event")
	}

	if len(slow) == 0 {
		t.Fatal("slow subscriber should still have its first buffered event")
	}
}

func TestUnsubscribeRemovesListener(t *testing.T) {
	b := New()
	_, unsubscribe := b.Subscribe(TopicStatistics)
	if b.SubscriberCount(TopicStatistics) != 1 {
		t.Fatalf("expected 1 subscriber, got %d", b.SubscriberCount(TopicStatistics))
	}
	unsubscribe()
	if b.SubscriberCount(TopicStatistics) != 0 {
		t.Fatalf("expected 0 subscribers after unsubscribe, got %d", b.SubscriberCount(TopicStatistics))
	}
}

func TestPublishStatMirrorsIntoMetricsRegistry(t *testing.T) {
	reg := metric.NewMetricsRegistry()
	b := New(WithMetricsRegistry(reg))

	b.PublishStat(StatSample{DefinitionID: "def-1", Stage: StageMapped, Name: "rows", Count: 5, Throughput: 12.5})

	metricFamilies, err := reg.PrometheusRegistry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var found bool
	for _, mf := range metricFamilies {
		if mf.GetName() == "datatracks_telemetry_stat_samples_total" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected datatracks_telemetry_stat_samples_total to be registered and gathered")
	}
}
