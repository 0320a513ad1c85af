// Package metric provides Prometheus-based metrics collection and an HTTP
// server for observing a running engine process.
//
// A centralized MetricsRegistry owns the platform's core metrics (train
// throughput, processing latency, engine apply latency, error counts) and
// lets individual components register their own counters, gauges, and
// histograms under a component name, so every metric ends up in one
// Prometheus registry scraped from a single HTTP endpoint.
//
// # Basic usage
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(9090, "/metrics", registry)
//	go func() {
//	    if err := server.Start(); err != nil && err != http.ErrServerClosed {
//	        log.Printf("metrics server error: %v", err)
//	    }
//	}()
//	defer server.Stop()
//
//	core := registry.CoreMetrics()
//	core.RecordTrainEmitted("station-1", "line-a")
//	core.RecordEngineApplyLatency("pg-main", "orders", elapsed)
//
// The server exposes Prometheus text format at /metrics (configurable)
// and a liveness check at /health.
//
// # Core metrics
//
// NewMetrics registers, under the "datatracks" namespace:
//
//   - service_status - lifecycle gauge per service name
//   - trains_received_total / trains_emitted_total - per station, per line
//   - trains_dead_lettered_total - per station, per reason
//   - trains_late_discarded_total - per station
//   - processing_duration_seconds - per station, per pipeline stage
//   - errors_total - per component, per error class
//   - health_status - per service name
//   - engine_apply_duration_seconds / engine_degraded - per (engine_id, definition_id)
//
// # Service-specific metrics
//
// Any component can register its own metric under its own name:
//
//	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "api_requests_total", Help: "..."})
//	err := registry.RegisterCounter("ingress-websocket", "api_requests_total", counter)
//
// RegisterGauge, RegisterHistogram, and their *Vec variants follow the
// same (component, name, metric) shape; all return an error on duplicate
// registration under the same component/name pair.
//
// # Thread safety
//
// Registration takes the registry's mutex; recording (Inc/Set/Observe) is
// the lock-free Prometheus client underneath, safe to call from any
// goroutine.
//
// # Architecture integration
//
//   - station: counts trains discarded past a window's allowed lateness
//     (RecordTrainLateDiscard); the other core recorders have no caller
//     outside this package
//   - ingress, egress, telemetry and pkg/worker: register their own
//     counters through the registry under their component name
//   - cmd/datatracks: serves the registry and wires the /health callback
package metric
