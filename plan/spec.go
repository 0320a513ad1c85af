// Package plan validates the topology an external DSL parser produces
// (a PlanSpec) into an immutable, executable Plan: station id uniqueness,
// line endpoint resolution, acyclicity, ingress/egress presence, and
// $N placeholder references used by transform queries.
package plan

// LayoutSpec describes the expected shape of wagons arriving at a station,
// used by the station runtime to coerce incoming values before windowing.
// Fields names the line ids (as $N placeholders resolve them) a field
// is read from, in the order a transform addresses them.
type LayoutSpec struct {
	Fields []LayoutField
}

// LayoutField names one expected column (by the line id it arrives on) and
// whether it may be absent.
type LayoutField struct {
	Name     string
	LineID   uint32
	Required bool
}

// TransformSpec names the embedded query language and query text to run
// against a station's windowed batch (C7).
type TransformSpec struct {
	Language string
	Query    string
}

// StationSpec is one node of the PlanSpec graph, as the external parser
// would emit it.
type StationSpec struct {
	ID        string
	Layout    *LayoutSpec
	Window    string   // e.g. "[60s]"; empty means unwindowed (pass-through)
	Lateness  string   // allowed lateness duration, e.g. "5s"
	Triggers  []string // e.g. "@element", "@windowEnd", "@windowNext", "@every(5s)"
	Transform *TransformSpec
	Sources   []string // line ids feeding this station, in $N order ($1 = Sources[0])
	Sinks     []string // line ids this station emits onto
	DeadLetter string  // optional line id for layout-mismatch / poison trains
}

// LineSpec is one edge of the PlanSpec graph: a bounded queue from one
// station's output to another's input.
type LineSpec struct {
	ID       string
	From     string
	To       string
	Capacity int
}

// PlanSpec is the contract the (external, out-of-scope) DSL parser is
// responsible for producing. Build validates and compiles it into a Plan.
type PlanSpec struct {
	ID       string
	Stations []StationSpec
	Lines    []LineSpec
}
