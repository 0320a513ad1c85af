// Package ingress defines the port ingress drivers attach to when
// feeding external data into the pipeline's lines, and provides a
// WebSocket-backed driver for cases where the platform itself accepts
// pushed data rather than polling/pulling a source.
package ingress

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/data-tracks/DataTracks/component"
	"github.com/data-tracks/DataTracks/errors"
	"github.com/data-tracks/DataTracks/metric"
	"github.com/data-tracks/DataTracks/pkg/buffer"
	"github.com/data-tracks/DataTracks/value"
	"github.com/data-tracks/DataTracks/wire"
)

// Binding is the port an ingress driver publishes decoded trains to -
// normally a station's ingress line. Publish must not block
// indefinitely; a Line's own bounded-queue backpressure governs that.
type Binding interface {
	Publish(train *value.Train) error
}

// ChannelBinding is the simplest Binding: every Publish forwards onto a
// buffered Go channel. Used directly by in-process ingress drivers and
// by tests that want to observe what an ingress driver published.
type ChannelBinding struct {
	ch chan *value.Train
}

// NewChannelBinding creates a ChannelBinding with the given channel
// capacity.
func NewChannelBinding(capacity int) *ChannelBinding {
	return &ChannelBinding{ch: make(chan *value.Train, capacity)}
}

// Publish implements Binding.
func (c *ChannelBinding) Publish(train *value.Train) error {
	select {
	case c.ch <- train:
		return nil
	default:
		return errors.WrapTransient(errors.ErrBackpressureTimeout, "ingress", "Publish", "channel binding full")
	}
}

// Trains returns the channel Publish writes to, for a consumer (a
// station's dispatch loop, or a test) to range over.
func (c *ChannelBinding) Trains() <-chan *value.Train {
	return c.ch
}

// Config configures a WebSocket ingress driver.
type Config struct {
	Path      string
	HTTPPort  int
	LineID    uint32
	QueueSize int
}

// WebSocket is a server-mode WebSocket ingress driver: every connected
// client sends wire.Message frames, which are unwrapped into
// single-wagon Trains on LineID and handed to the configured Binding.
// Grounded on the teacher's input/websocket server mode
// (handleWebSocket/handleClient/processMessages), trimmed to server-only
// and to this module's Train/Wagon domain instead of NATS subjects.
type WebSocket struct {
	name    string
	cfg     Config
	binding Binding
	metrics *metric.MetricsRegistry

	queue buffer.Buffer[wire.Message]

	httpServer *http.Server
	upgrader   websocket.Upgrader

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]struct{}

	counters struct {
		received *prometheus.CounterVec
		dropped  *prometheus.CounterVec
	}

	started atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewWebSocket creates a WebSocket ingress driver. The Config.LineID
// becomes every incoming message's only wagon entry and the train's
// OriginLine.
func NewWebSocket(name string, cfg Config, binding Binding, metrics *metric.MetricsRegistry) (*WebSocket, error) {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	queue, err := buffer.NewCircularBuffer[wire.Message](cfg.QueueSize,
		buffer.WithOverflowPolicy[wire.Message](buffer.DropOldest))
	if err != nil {
		return nil, errors.WrapFatal(err, "ingress", "NewWebSocket", "create queue")
	}

	ws := &WebSocket{
		name:    name,
		cfg:     cfg,
		binding: binding,
		metrics: metrics,
		queue:   queue,
		clients: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
	}
	if metrics != nil {
		ws.counters.received = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "datatracks", Subsystem: "ingress_websocket", Name: "messages_received_total",
			Help: "Total WebSocket ingress messages received",
		}, []string{"component"})
		ws.counters.dropped = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "datatracks", Subsystem: "ingress_websocket", Name: "messages_dropped_total",
			Help: "Total WebSocket ingress messages dropped under backpressure",
		}, []string{"component"})
		_ = metrics.RegisterCounterVec(name, "messages_received", ws.counters.received)
		_ = metrics.RegisterCounterVec(name, "messages_dropped", ws.counters.dropped)
	}
	return ws, nil
}

var _ component.LifecycleComponent = (*WebSocket)(nil)

// Initialize implements component.LifecycleComponent.
func (w *WebSocket) Initialize() error { return nil }

// Start implements component.LifecycleComponent: begins accepting
// WebSocket connections and dispatching queued messages as Trains.
func (w *WebSocket) Start(ctx context.Context) error {
	if w.started.Load() {
		return errors.WrapFatal(fmt.Errorf("already started"), "ingress", "Start", "check started state")
	}
	componentCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	mux := http.NewServeMux()
	mux.HandleFunc(w.cfg.Path, func(rw http.ResponseWriter, r *http.Request) {
		w.handleConn(componentCtx, rw, r)
	})
	w.httpServer = &http.Server{Addr: fmt.Sprintf(":%d", w.cfg.HTTPPort), Handler: mux}

	w.wg.Add(2)
	go w.serve()
	go w.dispatch(componentCtx)

	w.started.Store(true)
	return nil
}

func (w *WebSocket) serve() {
	defer w.wg.Done()
	if err := w.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		_ = err
	}
}

// Stop implements component.LifecycleComponent.
func (w *WebSocket) Stop(timeout time.Duration) error {
	if !w.started.Load() {
		return nil
	}
	w.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_ = w.httpServer.Shutdown(ctx)

	w.clientsMu.Lock()
	for conn := range w.clients {
		conn.Close()
	}
	w.clients = make(map[*websocket.Conn]struct{})
	w.clientsMu.Unlock()

	done := make(chan struct{})
	go func() { w.wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(timeout):
		return errors.WrapTransient(fmt.Errorf("shutdown timeout"), "ingress", "Stop", "wait for goroutines")
	}
	_ = w.queue.Close()
	w.started.Store(false)
	return nil
}

func (w *WebSocket) handleConn(ctx context.Context, rw http.ResponseWriter, r *http.Request) {
	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		return
	}
	w.clientsMu.Lock()
	w.clients[conn] = struct{}{}
	w.clientsMu.Unlock()

	defer func() {
		conn.Close()
		w.clientsMu.Lock()
		delete(w.clients, conn)
		w.clientsMu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		conn.SetReadDeadline(time.Now().Add(time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
				continue
			}
			return
		}
		msg, err := wire.Decode(data)
		if err != nil {
			continue
		}
		if w.counters.received != nil {
			w.counters.received.WithLabelValues(w.name).Inc()
		}
		if writeErr := w.queue.Write(msg); writeErr != nil && w.counters.dropped != nil {
			w.counters.dropped.WithLabelValues(w.name).Inc()
		}
	}
}

func (w *WebSocket) dispatch(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			msg, ok := w.queue.Read()
			if !ok {
				continue
			}
			w.publish(msg)
		}
	}
}

func (w *WebSocket) publish(msg wire.Message) {
	wagon, err := value.NewWagon(value.WagonEntry{LineID: w.cfg.LineID, Value: msg.Payload})
	if err != nil {
		return
	}
	ms := msg.Timestamp
	if ms == 0 {
		ms = time.Now().UnixMilli()
	}
	train := value.NewTrain(value.NewTime(ms, 0), w.cfg.LineID, []value.Wagon{wagon})
	_ = w.binding.Publish(train)
}
