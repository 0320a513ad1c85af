package component

import "time"

// HealthStatus describes the current health state of a component, used
// by health.Status to surface component-level health over the HTTP
// health endpoint (health.FromComponentHealth).
type HealthStatus struct {
	Healthy    bool          `json:"healthy"`
	LastCheck  time.Time     `json:"last_check"`
	ErrorCount int           `json:"error_count"`
	LastError  string        `json:"last_error,omitempty"`
	Uptime     time.Duration `json:"uptime"`
}
