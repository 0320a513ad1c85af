// Package telemetry implements the platform's non-blocking event bus:
// three topics (events, queues, statistics) that any component can
// publish a JSON-serializable sample to, and any number of dashboards
// or WebSocket handlers can subscribe to.
//
// Every publish is non-blocking: a subscriber whose buffer is full has
// the new sample dropped rather than stalling the producer, following
// the same select-with-default-and-count pattern the teacher uses for
// its runtime log SSE fan-out (service/flow_runtime_logs.go).
package telemetry

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/data-tracks/DataTracks/metric"
)

// Topic names the three telemetry channels.
type Topic string

const (
	TopicEvents     Topic = "events"
	TopicQueues     Topic = "queues"
	TopicStatistics Topic = "statistics"
)

// EventKind enumerates the discrete state transitions published on the
// events topic.
type EventKind string

const (
	EventStationOpened   EventKind = "station_opened"
	EventStationClosed   EventKind = "station_closed"
	EventEngineDegraded  EventKind = "engine_degraded"
	EventEngineRecovered EventKind = "engine_recovered"
	EventWalCorrupt      EventKind = "wal_corrupt"
	EventDeadLettered    EventKind = "dead_lettered"
)

// Event is a sample published on the events topic.
type Event struct {
	Kind      EventKind              `json:"kind"`
	Source    string                 `json:"source"`
	Timestamp int64                  `json:"timestamp_ms"`
	Detail    map[string]interface{} `json:"detail,omitempty"`
}

// QueueSample is a periodic depth reading for a named queue (a line, the
// WAL's delay ring, a per-engine backlog).
type QueueSample struct {
	Name      string `json:"name"`
	Size      uint32 `json:"size"`
	Timestamp int64  `json:"timestamp_ms"`
}

// Stage distinguishes the two counting points a station's throughput is
// sampled at: before and after its transform runs.
type Stage string

const (
	StagePlain  Stage = "plain"
	StageMapped Stage = "mapped"
)

// StatSample is a per-engine counter/throughput reading.
type StatSample struct {
	DefinitionID string  `json:"definition_id"`
	Stage        Stage   `json:"stage"`
	Name         string  `json:"name"`
	Count        uint64  `json:"count"`
	Throughput   float64 `json:"throughput_per_sec"`
	Timestamp    int64   `json:"timestamp_ms"`
}

const defaultBufferSize = 256

// Option configures a Bus.
type Option func(*Bus)

// WithBufferSize sets the per-subscriber channel capacity for every
// topic. Default 256.
func WithBufferSize(n int) Option {
	return func(b *Bus) { b.bufferSize = n }
}

// WithMetricsRegistry wires the statistics topic's underlying
// counters/gauges into a Prometheus registry, in addition to the raw
// JSON sample stream, so a dashboard can subscribe to either.
func WithMetricsRegistry(reg *metric.MetricsRegistry) Option {
	return func(b *Bus) { b.metrics = reg }
}

// Bus is a multi-producer, multi-consumer fan-out of JSON-serializable
// samples across three fixed topics. Publishers never block; a full
// subscriber buffer drops the sample and increments that subscriber's
// drop counter instead.
type Bus struct {
	bufferSize int
	metrics    *metric.MetricsRegistry
	statCount  *prometheus.CounterVec
	statThru   *prometheus.GaugeVec

	mu          sync.RWMutex
	subscribers map[Topic]map[*subscription]struct{}

	published atomic.Uint64
	dropped   atomic.Uint64
}

type subscription struct {
	ch      chan []byte
	dropped atomic.Uint64
}

// New creates a Bus ready to publish and subscribe.
func New(opts ...Option) *Bus {
	b := &Bus{
		bufferSize: defaultBufferSize,
		subscribers: map[Topic]map[*subscription]struct{}{
			TopicEvents:     {},
			TopicQueues:     {},
			TopicStatistics: {},
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.metrics != nil {
		b.statCount = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "datatracks",
			Subsystem: "telemetry",
			Name:      "stat_samples_total",
			Help:      "Sum of the counts carried by statistics samples for a (definition, stage, name) triple",
		}, []string{"definition_id", "stage", "name"})
		b.statThru = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "datatracks",
			Subsystem: "telemetry",
			Name:      "stat_throughput_per_second",
			Help:      "EWMA throughput carried by the latest statistics sample",
		}, []string{"definition_id", "stage", "name"})
		// Registration failures here (duplicate registry reuse across
		// tests) are not fatal to the bus; the JSON stream still works.
		_ = b.metrics.RegisterCounterVec("telemetry", "stat_samples_total", b.statCount)
		_ = b.metrics.RegisterGaugeVec("telemetry", "stat_throughput_per_second", b.statThru)
	}
	return b
}

// Subscribe registers a new listener on topic and returns a channel of
// raw JSON-encoded samples plus an unsubscribe func. The returned
// channel must be drained by the caller; a slow caller only loses its
// own samples, never another subscriber's.
func (b *Bus) Subscribe(topic Topic) (<-chan []byte, func()) {
	sub := &subscription{ch: make(chan []byte, b.bufferSize)}

	b.mu.Lock()
	b.subscribers[topic][sub] = struct{}{}
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		delete(b.subscribers[topic], sub)
		b.mu.Unlock()
		close(sub.ch)
	}
	return sub.ch, unsubscribe
}

// PublishEvent publishes a discrete state transition on the events topic.
func (b *Bus) PublishEvent(ev Event) {
	b.publish(TopicEvents, ev)
}

// PublishQueueSample publishes a queue-depth reading on the queues topic.
func (b *Bus) PublishQueueSample(s QueueSample) {
	b.publish(TopicQueues, s)
}

// PublishStat publishes a per-engine counter/throughput reading on the
// statistics topic, and mirrors it into the Prometheus registry if one
// was configured via WithMetricsRegistry.
func (b *Bus) PublishStat(s StatSample) {
	b.publish(TopicStatistics, s)
	if b.statCount == nil {
		return
	}
	labels := []string{s.DefinitionID, string(s.Stage), s.Name}
	b.statCount.WithLabelValues(labels...).Add(float64(s.Count))
	b.statThru.WithLabelValues(labels...).Set(s.Throughput)
}

func (b *Bus) publish(topic Topic, sample interface{}) {
	data, err := json.Marshal(sample)
	if err != nil {
		return
	}
	b.published.Add(1)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subscribers[topic] {
		select {
		case sub.ch <- data:
		default:
			sub.dropped.Add(1)
			b.dropped.Add(1)
		}
	}
}

// Stats reports how many samples this bus has published and dropped
// across all topics and subscribers since creation.
func (b *Bus) Stats() (published, dropped uint64) {
	return b.published.Load(), b.dropped.Load()
}

// SubscriberCount returns the number of active subscribers on topic,
// mostly useful for tests and diagnostics.
func (b *Bus) SubscriberCount(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[topic])
}
