package plan

import (
	"testing"
)

func linearSpec() PlanSpec {
	return PlanSpec{
		ID: "p1",
		Stations: []StationSpec{
			{ID: "ingest", Sinks: []string{"l1"}},
			{ID: "filter", Sources: []string{"l1"}, Sinks: []string{"l2"},
				Transform: &TransformSpec{Language: "sql", Query: "SELECT $1 FROM $1 WHERE $1 > 0"}},
			{ID: "sink", Sources: []string{"l2"}},
		},
		Lines: []LineSpec{
			{ID: "l1", From: "ingest", To: "filter"},
			{ID: "l2", From: "filter", To: "sink"},
		},
	}
}

func TestBuildValidLinearPlan(t *testing.T) {
	p, err := Build(linearSpec())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(p.Order) != 3 {
		t.Fatalf("expected 3 stations in topo order, got %d", len(p.Order))
	}
	if p.Order[0] != "ingest" {
		t.Errorf("expected ingest first, got %s", p.Order[0])
	}
	if !p.Stations["ingest"].IsIngress {
		t.Error("expected ingest to be flagged as ingress")
	}
	if !p.Stations["sink"].IsEgress {
		t.Error("expected sink to be flagged as egress")
	}
}

func TestBuildRejectsDuplicateStationID(t *testing.T) {
	spec := linearSpec()
	spec.Stations = append(spec.Stations, StationSpec{ID: "ingest"})
	if _, err := Build(spec); err == nil {
		t.Fatal("expected error for duplicate station id")
	}
}

func TestBuildRejectsUnknownLineEndpoint(t *testing.T) {
	spec := linearSpec()
	spec.Lines[0].To = "does-not-exist"
	if _, err := Build(spec); err == nil {
		t.Fatal("expected error for unresolved line endpoint")
	}
}

func TestBuildRejectsCycle(t *testing.T) {
	spec := linearSpec()
	spec.Lines = append(spec.Lines, LineSpec{ID: "l3", From: "sink", To: "ingest"})
	if _, err := Build(spec); err == nil {
		t.Fatal("expected error for cyclic plan")
	}
}

func TestBuildRequiresIngress(t *testing.T) {
	spec := PlanSpec{
		ID: "p2",
		Stations: []StationSpec{
			{ID: "a", Sources: []string{"loop"}, Sinks: []string{"loop"}},
		},
		Lines: []LineSpec{
			{ID: "loop", From: "a", To: "a"},
		},
	}
	if _, err := Build(spec); err == nil {
		t.Fatal("expected error: every station has an incoming line")
	}
}

func TestBuildRejectsDisconnectedGraph(t *testing.T) {
	spec := linearSpec()
	spec.Stations = append(spec.Stations, StationSpec{ID: "island"})
	if _, err := Build(spec); err == nil {
		t.Fatal("expected error for disconnected plan")
	}
}

func TestBuildRejectsOutOfRangePlaceholder(t *testing.T) {
	spec := linearSpec()
	spec.Stations[1].Transform.Query = "SELECT $2 FROM $2"
	if _, err := Build(spec); err == nil {
		t.Fatal("expected error for out-of-range $N placeholder")
	}
}

func TestBuildRejectsEmptyPlan(t *testing.T) {
	if _, err := Build(PlanSpec{ID: "empty"}); err == nil {
		t.Fatal("expected error for plan with no stations")
	}
}

func TestInternIDStableAndDistinct(t *testing.T) {
	a := InternID("station-a")
	b := InternID("station-a")
	c := InternID("station-b")
	if a != b {
		t.Error("expected InternID to be stable for the same input")
	}
	if a == c {
		t.Error("expected InternID to differ for different inputs")
	}
}
