// Package component defines the lifecycle contract shared by every
// long-lived DataTracks component: the WAL writer, the engine persister
// pool, ingress/egress WebSocket drivers, and stations.
//
// LifecycleComponent standardizes startup and shutdown
// (Initialize/Start/Stop) so the process entrypoint can bring every
// component up and tear it down uniformly, regardless of what the
// component actually does. HealthStatus is the shared shape a
// component reports its health in, surfaced over the process's HTTP
// health endpoint via health.FromComponentHealth.
package component
