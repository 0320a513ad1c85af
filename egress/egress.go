// Package egress defines the port egress stations and the dashboard
// attach to, and provides a WebSocket-backed driver that broadcasts
// emitted trains to every connected client as wire.Message frames.
// Grounded on the teacher's output/websocket package (broadcasting
// NATS messages to connected WebSocket clients), trimmed to this
// module's Train/Wagon domain instead of NATS subjects.
package egress

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
	"github.com/data-tracks/DataTracks/value"
	"github.com/data-tracks/DataTracks/wire"
)

// Binding is the port a station's egress side writes emitted trains to.
type Binding interface {
	// Publish hands a train to the binding; a dashboard-facing binding
	// fans it out to subscribers, never blocking the station.
	Publish(train *value.Train) error
	// Subscribe returns a channel of trains published to this binding.
	Subscribe() <-chan *value.Train
}

// ChannelBinding is a Binding backed by a single buffered Go channel -
// a direct fan-in point for in-process consumers and tests.
type ChannelBinding struct {
	ch chan *value.Train
}

// NewChannelBinding creates a ChannelBinding with the given capacity.
func NewChannelBinding(capacity int) *ChannelBinding {
	return &ChannelBinding{ch: make(chan *value.Train, capacity)}
}

// Publish implements Binding.
func (c *ChannelBinding) Publish(train *value.Train) error {
	select {
	case c.ch <- train:
		return nil
	default:
		return errors.WrapTransient(errors.ErrBackpressureTimeout, "egress", "Publish", "channel binding full")
	}
}

// Subscribe implements Binding.
func (c *ChannelBinding) Subscribe() <-chan *value.Train {
	return c.ch
}

// Config configures a WebSocket egress driver.
type Config struct {
	Path     string
	HTTPPort int
	Topic    string
}

// WebSocket is a server-mode egress driver: every train published to
// its embedded Binding is broken into one wire.Message per wagon entry
// and written to each currently connected client in turn. Writes are
// synchronous, so a slow client delays the others; a write that fails is
// counted as dropped and that client is skipped for that message.
type WebSocket struct {
	name    string
	cfg     Config
	binding *ChannelBinding
	metrics *metric.MetricsRegistry

	httpServer *http.Server
	upgrader   websocket.Upgrader

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]struct{}

	broadcast *prometheus.CounterVec
	dropped   *prometheus.CounterVec

	started atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewWebSocket creates a WebSocket egress driver with its own internal
// ChannelBinding as the fan-in point stations publish to.
func NewWebSocket(name string, cfg Config, metrics *metric.MetricsRegistry) *WebSocket {
	ws := &WebSocket{
		name:    name,
		cfg:     cfg,
		binding: NewChannelBinding(1024),
		metrics: metrics,
		clients: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
	}
	if metrics != nil {
		ws.broadcast = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "datatracks", Subsystem: "egress_websocket", Name: "messages_sent_total",
			Help: "Total WebSocket egress messages sent to a client",
		}, []string{"component"})
		ws.dropped = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "datatracks", Subsystem: "egress_websocket", Name: "messages_dropped_total",
			Help: "Total WebSocket egress messages dropped because a client's write failed",
		}, []string{"component"})
		_ = metrics.RegisterCounterVec(name, "messages_sent", ws.broadcast)
		_ = metrics.RegisterCounterVec(name, "messages_dropped", ws.dropped)
	}
	return ws
}

// Binding returns the Binding stations should publish emitted trains to.
func (w *WebSocket) Binding() Binding { return w.binding }

var _ component.LifecycleComponent = (*WebSocket)(nil)

// Initialize implements component.LifecycleComponent.
func (w *WebSocket) Initialize() error { return nil }

// Start implements component.LifecycleComponent.
func (w *WebSocket) Start(ctx context.Context) error {
	if w.started.Load() {
		return errors.WrapFatal(fmt.Errorf("already started"), "egress", "Start", "check started state")
	}
	componentCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	mux := http.NewServeMux()
	mux.HandleFunc(w.cfg.Path, w.handleConn)
	w.httpServer = &http.Server{Addr: fmt.Sprintf(":%d", w.cfg.HTTPPort), Handler: mux}

	w.wg.Add(2)
	go func() {
		defer w.wg.Done()
		if err := w.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			_ = err
		}
	}()
	go w.pump(componentCtx)

	w.started.Store(true)
	return nil
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
		return errors.WrapTransient(fmt.Errorf("shutdown timeout"), "egress", "Stop", "wait for goroutines")
	}
	w.started.Store(false)
	return nil
}

func (w *WebSocket) handleConn(rw http.ResponseWriter, r *http.Request) {
	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		return
	}
	w.clientsMu.Lock()
	w.clients[conn] = struct{}{}
	w.clientsMu.Unlock()

	// Egress connections are write-only from this side; a read loop only
	// exists to notice disconnects promptly.
	go func() {
		defer func() {
			conn.Close()
			w.clientsMu.Lock()
			delete(w.clients, conn)
			w.clientsMu.Unlock()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (w *WebSocket) pump(ctx context.Context) {
	defer w.wg.Done()
	trains := w.binding.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case train, ok := <-trains:
			if !ok {
				return
			}
			w.broadcastTrain(train)
		}
	}
}

func (w *WebSocket) broadcastTrain(train *value.Train) {
	ms, _, _ := train.EventTS.Time()
	for _, wg := range train.Wagons() {
		for _, entry := range wg.Entries() {
			msg := wire.NewMessage(entry.Value, ms, w.cfg.Topic)
			data, err := wire.Encode(msg)
			if err != nil {
				continue
			}
			w.send(data)
		}
	}
}

func (w *WebSocket) send(data []byte) {
	w.clientsMu.Lock()
	conns := make([]*websocket.Conn, 0, len(w.clients))
	for conn := range w.clients {
		conns = append(conns, conn)
	}
	w.clientsMu.Unlock()

	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			if w.dropped != nil {
				w.dropped.WithLabelValues(w.name).Inc()
			}
			continue
		}
		if w.broadcast != nil {
			w.broadcast.WithLabelValues(w.name).Inc()
		}
	}
}
