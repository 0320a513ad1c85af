package plan

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/data-tracks/DataTracks/errors"
)

// StationNode is a validated, wired station in a Plan.
type StationNode struct {
	Spec      StationSpec
	InLines   []string
	OutLines  []string
	IsIngress bool
	IsEgress  bool
}

// LineNode is a validated, wired line in a Plan.
type LineNode struct {
	Spec LineSpec
}

// Plan is an immutable, validated DAG of stations and lines: station id
// uniqueness, line endpoint resolution, acyclicity, >=1 ingress, >=1 egress
// and weak connectivity have all already been checked by Build.
type Plan struct {
	ID       string
	Stations map[string]*StationNode
	Lines    map[string]*LineNode
	// Order is a topological ordering of station ids (Kahn's algorithm):
	// a station never appears before any station feeding it a line.
	Order []string
}

// InternID returns a fast, non-cryptographic fingerprint of id, used to
// derive the numeric plan, station and line ids that WAL records and
// ingress bindings carry.
func InternID(id string) uint64 {
	return xxhash.Sum64String(id)
}

var placeholderRe = regexp.MustCompile(`\$(\d+)`)

// Build validates spec and compiles it into an executable Plan. It fails
// with an errors.ErrPlanInvalid-classified error naming the first problem
// found; validation order is: station id uniqueness, line id uniqueness
// and endpoint resolution, acyclicity, ingress/egress presence, weak
// connectivity, and $N placeholder bounds in transform queries.
func Build(spec PlanSpec) (*Plan, error) {
	stations := make(map[string]*StationNode, len(spec.Stations))
	for _, s := range spec.Stations {
		if s.ID == "" {
			return nil, invalid("station with empty id")
		}
		if _, dup := stations[s.ID]; dup {
			return nil, invalid(fmt.Sprintf("duplicate station id %q", s.ID))
		}
		stations[s.ID] = &StationNode{Spec: s}
	}
	if len(stations) == 0 {
		return nil, invalid("plan has no stations")
	}

	lines := make(map[string]*LineNode, len(spec.Lines))
	adjacency := make(map[string][]string) // station -> stations it feeds
	indegree := make(map[string]int, len(stations))
	for id := range stations {
		indegree[id] = 0
	}

	for _, l := range spec.Lines {
		if l.ID == "" {
			return nil, invalid("line with empty id")
		}
		if _, dup := lines[l.ID]; dup {
			return nil, invalid(fmt.Sprintf("duplicate line id %q", l.ID))
		}
		from, ok := stations[l.From]
		if !ok {
			return nil, invalid(fmt.Sprintf("line %q references unknown source station %q", l.ID, l.From))
		}
		to, ok := stations[l.To]
		if !ok {
			return nil, invalid(fmt.Sprintf("line %q references unknown destination station %q", l.ID, l.To))
		}
		lines[l.ID] = &LineNode{Spec: l}
		from.OutLines = append(from.OutLines, l.ID)
		to.InLines = append(to.InLines, l.ID)
		adjacency[l.From] = append(adjacency[l.From], l.To)
		indegree[l.To]++
	}

	order, err := topoSort(stations, adjacency, indegree)
	if err != nil {
		return nil, err
	}

	ingressCount, egressCount := 0, 0
	for id, node := range stations {
		node.IsIngress = len(node.InLines) == 0
		node.IsEgress = len(node.OutLines) == 0
		if node.IsIngress {
			ingressCount++
		}
		if node.IsEgress {
			egressCount++
		}
		_ = id
	}
	if ingressCount == 0 {
		return nil, invalid("plan has no ingress station (every station has an incoming line)")
	}
	if egressCount == 0 {
		return nil, invalid("plan has no egress station (every station has an outgoing line)")
	}

	if err := checkConnected(stations, spec.Lines); err != nil {
		return nil, err
	}

	for _, s := range spec.Stations {
		if s.Transform == nil {
			continue
		}
		if err := validatePlaceholders(s); err != nil {
			return nil, err
		}
	}

	return &Plan{ID: spec.ID, Stations: stations, Lines: lines, Order: order}, nil
}

func topoSort(stations map[string]*StationNode, adjacency map[string][]string, indegree map[string]int) ([]string, error) {
	queue := make([]string, 0, len(stations))
	remaining := make(map[string]int, len(indegree))
	for id, d := range indegree {
		remaining[id] = d
		if d == 0 {
			queue = append(queue, id)
		}
	}
	// deterministic order regardless of map iteration
	sortStrings(queue)

	order := make([]string, 0, len(stations))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		next := append([]string(nil), adjacency[id]...)
		sortStrings(next)
		for _, n := range next {
			remaining[n]--
			if remaining[n] == 0 {
				queue = append(queue, n)
			}
		}
	}

	if len(order) != len(stations) {
		return nil, invalid("plan graph contains a cycle")
	}
	return order, nil
}

func sortStrings(ss []string) {
	for i := 1; i < len(ss); i++ {
		for j := i; j > 0 && ss[j-1] > ss[j]; j-- {
			ss[j-1], ss[j] = ss[j], ss[j-1]
		}
	}
}

// checkConnected verifies the plan is a single weakly-connected multi-graph:
// every station is reachable from every other when line direction is
// ignored.
func checkConnected(stations map[string]*StationNode, lineSpecs []LineSpec) error {
	undirected := make(map[string][]string, len(stations))
	for _, l := range lineSpecs {
		undirected[l.From] = append(undirected[l.From], l.To)
		undirected[l.To] = append(undirected[l.To], l.From)
	}

	var start string
	for id := range stations {
		start = id
		break
	}

	visited := map[string]bool{start: true}
	stack := []string{start}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, n := range undirected[cur] {
			if !visited[n] {
				visited[n] = true
				stack = append(stack, n)
			}
		}
	}

	if len(visited) != len(stations) {
		return invalid("plan graph is not connected")
	}
	return nil
}

// validatePlaceholders ensures every $N in a station's transform query
// refers to one of its declared Sources (1-indexed).
func validatePlaceholders(s StationSpec) error {
	matches := placeholderRe.FindAllStringSubmatch(s.Transform.Query, -1)
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return invalid(fmt.Sprintf("station %q transform has malformed placeholder %q", s.ID, m[0]))
		}
		if n < 1 || n > len(s.Sources) {
			return invalid(fmt.Sprintf(
				"station %q transform references $%d but only has %d source(s)",
				s.ID, n, len(s.Sources)))
		}
	}
	return nil
}

func invalid(reason string) error {
	return errors.WrapInvalid(errors.ErrPlanInvalid, "plan", "Build", reason)
}

// Describe renders a short human-readable summary of p, useful for `validate`
// CLI output and logging at startup.
func (p *Plan) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "plan %q: %d stations, %d lines\n", p.ID, len(p.Stations), len(p.Lines))
	for _, id := range p.Order {
		n := p.Stations[id]
		role := ""
		if n.IsIngress {
			role += " ingress"
		}
		if n.IsEgress {
			role += " egress"
		}
		fmt.Fprintf(&b, "  %s (%d in, %d out)%s\n", id, len(n.InLines), len(n.OutLines), role)
	}
	return b.String()
}
