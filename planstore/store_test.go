package planstore

import (
	"path/filepath"
	"testing"

	"github.com/data-tracks/DataTracks/plan"
)

func linearSpec(id string) plan.PlanSpec {
	return plan.PlanSpec{
		ID: id,
		Stations: []plan.StationSpec{
			{ID: "ingest", Sinks: []string{"l1"}},
			{ID: "sink", Sources: []string{"l1"}},
		},
		Lines: []plan.LineSpec{
			{ID: "l1", From: "ingest", To: "sink"},
		},
	}
}

func TestCreateGetRoundTrip(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "plans"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Create(linearSpec("p1")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	rec, err := s.Get("p1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Version != 1 {
		t.Fatalf("expected version 1, got %d", rec.Version)
	}
	if len(rec.Spec.Stations) != 2 {
		t.Fatalf("expected 2 stations, got %d", len(rec.Spec.Stations))
	}
}

func TestCreateRejectsDuplicateID(t *testing.T) {
	s, _ := New(t.TempDir())
	if err := s.Create(linearSpec("p1")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create(linearSpec("p1")); err == nil {
		t.Fatal("expected duplicate id to fail")
	}
}

func TestCreateRejectsInvalidTopology(t *testing.T) {
	s, _ := New(t.TempDir())
	spec := linearSpec("p1")
	spec.Lines[0].To = "does-not-exist"
	if err := s.Create(spec); err == nil {
		t.Fatal("expected invalid plan topology to fail")
	}
}

func TestUpdateEnforcesOptimisticConcurrency(t *testing.T) {
	s, _ := New(t.TempDir())
	spec := linearSpec("p1")
	if err := s.Create(spec); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := s.Update(spec, 1); err != nil {
		t.Fatalf("Update with correct version: %v", err)
	}
	if _, err := s.Update(spec, 1); err == nil {
		t.Fatal("expected stale version to be rejected")
	}
}

func TestDeleteRemovesPlan(t *testing.T) {
	s, _ := New(t.TempDir())
	if err := s.Create(linearSpec("p1")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Delete("p1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get("p1"); err == nil {
		t.Fatal("expected Get after Delete to fail")
	}
}

func TestListReturnsSortedIDs(t *testing.T) {
	s, _ := New(t.TempDir())
	for _, id := range []string{"charlie", "alpha", "bravo"} {
		if err := s.Create(linearSpec(id)); err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
	}
	ids, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"alpha", "bravo", "charlie"}
	if len(ids) != len(want) {
		t.Fatalf("expected %d ids, got %v", len(want), ids)
	}
	for i, id := range want {
		if ids[i] != id {
			t.Fatalf("expected sorted id %q at index %d, got %q", id, i, ids[i])
		}
	}
}
