package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the platform-level metrics shared across every
// component (station, WAL writer, engine persister pool) - not the
// domain-specific gauges each component registers for itself via
// MetricsRegistry.RegisterGauge/RegisterCounter.
type Metrics struct {
	ServiceStatus       *prometheus.GaugeVec
	TrainsReceived      *prometheus.CounterVec
	TrainsEmitted       *prometheus.CounterVec
	TrainsDeadLettered  *prometheus.CounterVec
	TrainsLateDiscarded *prometheus.CounterVec
	ProcessingDuration  *prometheus.HistogramVec
	ErrorsTotal         *prometheus.CounterVec
	HealthCheckStatus   *prometheus.GaugeVec

	EngineApplyLatency *prometheus.HistogramVec
	EngineDegraded     *prometheus.GaugeVec
}

// NewMetrics creates a new Metrics instance with all platform metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		ServiceStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "datatracks",
				Subsystem: "service",
				Name:      "status",
				Help:      "Service status (0=stopped, 1=starting, 2=running, 3=stopping, 4=failed)",
			},
			[]string{"service"},
		),

		TrainsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "datatracks",
				Subsystem: "trains",
				Name:      "received_total",
				Help:      "Total number of trains received by a station",
			},
			[]string{"station", "line"},
		),

		TrainsEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "datatracks",
				Subsystem: "trains",
				Name:      "emitted_total",
				Help:      "Total number of trains emitted by a station",
			},
			[]string{"station", "line"},
		),

		TrainsDeadLettered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "datatracks",
				Subsystem: "trains",
				Name:      "dead_lettered_total",
				Help:      "Total number of trains routed to a dead-letter line",
			},
			[]string{"station", "reason"},
		),

		TrainsLateDiscarded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "datatracks",
				Subsystem: "trains",
				Name:      "late_discarded_total",
				Help:      "Total number of trains dropped for arriving past a window's allowed lateness",
			},
			[]string{"station"},
		),

		ProcessingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "datatracks",
				Subsystem: "processing",
				Name:      "duration_seconds",
				Help:      "Station pipeline processing duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"station", "operation"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "datatracks",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of classified errors",
			},
			[]string{"component", "class"},
		),

		HealthCheckStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "datatracks",
				Subsystem: "health",
				Name:      "status",
				Help:      "Health check status (0=unhealthy, 1=healthy)",
			},
			[]string{"service"},
		),

		EngineApplyLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "datatracks",
				Subsystem: "engine",
				Name:      "apply_duration_seconds",
				Help:      "Time spent applying a train to an engine binding",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"engine_id", "definition_id"},
		),

		EngineDegraded: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "datatracks",
				Subsystem: "engine",
				Name:      "degraded",
				Help:      "1 while an engine persister is blocked past its retry budget, 0 otherwise",
			},
			[]string{"engine_id", "definition_id"},
		),
	}
}

// RecordServiceStatus updates service status metric.
func (c *Metrics) RecordServiceStatus(service string, status int) {
	c.ServiceStatus.WithLabelValues(service).Set(float64(status))
}

// RecordTrainReceived increments the received-train counter.
func (c *Metrics) RecordTrainReceived(station, line string) {
	c.TrainsReceived.WithLabelValues(station, line).Inc()
}

// RecordTrainEmitted increments the emitted-train counter.
func (c *Metrics) RecordTrainEmitted(station, line string) {
	c.TrainsEmitted.WithLabelValues(station, line).Inc()
}

// RecordTrainDeadLettered increments the dead-letter counter.
func (c *Metrics) RecordTrainDeadLettered(station, reason string) {
	c.TrainsDeadLettered.WithLabelValues(station, reason).Inc()
}

// RecordTrainLateDiscard increments the late-discard counter.
func (c *Metrics) RecordTrainLateDiscard(station string) {
	c.TrainsLateDiscarded.WithLabelValues(station).Inc()
}

// RecordProcessingDuration records processing time.
func (c *Metrics) RecordProcessingDuration(station, operation string, duration time.Duration) {
	c.ProcessingDuration.WithLabelValues(station, operation).Observe(duration.Seconds())
}

// RecordError increments the classified error counter.
func (c *Metrics) RecordError(component, class string) {
	c.ErrorsTotal.WithLabelValues(component, class).Inc()
}

// RecordHealthStatus updates health check status.
func (c *Metrics) RecordHealthStatus(service string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	c.HealthCheckStatus.WithLabelValues(service).Set(value)
}

// RecordEngineApplyLatency records how long an engine binding took to
// apply one train.
func (c *Metrics) RecordEngineApplyLatency(engineID, definitionID string, duration time.Duration) {
	c.EngineApplyLatency.WithLabelValues(engineID, definitionID).Observe(duration.Seconds())
}

// RecordEngineDegraded sets the degraded gauge for an (engine, definition) pair.
func (c *Metrics) RecordEngineDegraded(engineID, definitionID string, degraded bool) {
	value := 0.0
	if degraded {
		value = 1.0
	}
	c.EngineDegraded.WithLabelValues(engineID, definitionID).Set(value)
}
