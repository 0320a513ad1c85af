// Package datatracks implements a deterministic, single-process
// streaming engine: typed values flow as trains of wagons along bounded
// lines, through stations that window, transform and emit them, with a
// write-ahead log guaranteeing at-least-once delivery into pluggable
// storage engines.
//
// # Architecture
//
//	ingress -> Line -> Station -> WAL -> Engine persister
//
// A station's runtime is layout -> window -> trigger -> transform ->
// emit. A plan.PlanSpec, built and validated into a plan.Plan, wires
// stations and lines into a DAG; each station runs independently, so a
// slow or blocked station backpressures only the lines feeding it.
// Every train emitted by a station whose definition has an engine
// binding is appended to the write-ahead log before being handed to that
// engine's persister, so a crash between append and persist does not
// lose the train: the replay subcommand re-submits the records after the
// last applied LSN recorded in offsets.db.
//
// # Packages
//
//   - value: the tagged Value union, Wagon, and Train wire types, plus
//     their binary codec.
//   - plan: validates a PlanSpec into an executable Plan (acyclicity,
//     endpoint resolution, ingress/egress presence).
//   - station: the layout/window/trigger/transform/emit runtime for one
//     Plan node.
//   - window: tumbling window parsing and assignment, watermarks and
//     trigger policies (hopping windows are rejected).
//   - transform: the pluggable query-language registry stations invoke
//     against a windowed batch (SQL via transform/sql).
//   - wal: the append-only, segment-backed write-ahead log every train
//     passes through before reaching a persister.
//   - persist: the engine registry, per-binding worker pools, and the
//     sqlite-backed durable offset cursor (persist/drivers for mongodb,
//     postgres, neo4j, sqlite).
//   - planstore: filesystem persistence for plan definitions.
//   - ingress / egress: the ports external producers and consumers
//     attach to, plus WebSocket server-mode drivers.
//   - wire: the JSON-enveloped, binary-value-payload frame format
//     ingress/egress WebSocket drivers speak.
//   - telemetry: the non-blocking events/queues/statistics bus the
//     dashboard and Prometheus both subscribe to.
//   - component: the LifecycleComponent contract every long-lived piece
//     implements (Initialize/Start/Stop).
//   - metric: the Prometheus MetricsRegistry wrapper.
//   - health: HTTP health endpoint aggregation across components.
//   - errors: the transient/invalid/fatal error classification taxonomy.
//   - config: static process configuration (JSON/YAML/TOML plus env
//     overrides).
package datatracks
