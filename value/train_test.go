package value

import (
	"errors"
	"testing"

	dterrors "github.com/data-tracks/DataTracks/errors"
)

func TestWagonProjectRestrictsAndPreservesOrder(t *testing.T) {
	w, err := NewWagon(
		WagonEntry{LineID: 1, Value: NewInt(10)},
		WagonEntry{LineID: 2, Value: NewInt(20)},
		WagonEntry{LineID: 3, Value: NewInt(30)},
	)
	if err != nil {
		t.Fatalf("NewWagon: %v", err)
	}

	got := Project(w, []uint32{3, 1})
	if got.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", got.Len())
	}
	if ids := got.LineIDs(); ids[0] != 3 || ids[1] != 1 {
		t.Errorf("expected order [3,1], got %v", ids)
	}
}

func TestWagonRejectsDuplicateLineIDs(t *testing.T) {
	_, err := NewWagon(
		WagonEntry{LineID: 1, Value: NewInt(1)},
		WagonEntry{LineID: 1, Value: NewInt(2)},
	)
	if err == nil {
		t.Fatal("expected duplicate line id error")
	}
}

func TestMergeConcatenatesNonConflictingLines(t *testing.T) {
	w1, _ := NewWagon(WagonEntry{LineID: 1, Value: NewInt(1)})
	w2, _ := NewWagon(WagonEntry{LineID: 2, Value: NewInt(2)})

	t1 := NewTrain(NewTime(1000, 0), 1, []Wagon{w1})
	t2 := NewTrain(NewTime(2000, 0), 2, []Wagon{w2})

	merged, err := Merge(t1, t2)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if merged.Len() != 1 {
		t.Fatalf("expected 1 merged wagon, got %d", merged.Len())
	}
	row := merged.Wagons()[0]
	v1, ok := row.Get(1)
	if !ok {
		t.Fatal("expected line 1 value present")
	}
	if n, _ := v1.Int(); n != 1 {
		t.Errorf("line 1 value = %d, want 1", n)
	}
	v2, ok := row.Get(2)
	if !ok {
		t.Fatal("expected line 2 value present")
	}
	if n, _ := v2.Int(); n != 2 {
		t.Errorf("line 2 value = %d, want 2", n)
	}

	ms, _, _ := merged.EventTS.Time()
	if ms != 2000 {
		t.Errorf("expected merged EventTS to take the max (2000), got %d", ms)
	}
}

func TestMergeFailsOnConflictingLineValues(t *testing.T) {
	w1, _ := NewWagon(WagonEntry{LineID: 1, Value: NewInt(1)})
	w2, _ := NewWagon(WagonEntry{LineID: 1, Value: NewInt(999)})

	t1 := NewTrain(NewTime(1000, 0), 1, []Wagon{w1})
	t2 := NewTrain(NewTime(1000, 0), 2, []Wagon{w2})

	_, err := Merge(t1, t2)
	if err == nil {
		t.Fatal("expected LineCollision error")
	}
	if !errors.Is(err, dterrors.ErrLineCollision) {
		t.Errorf("expected errors.Is ErrLineCollision, got %v", err)
	}
}

func TestEncodeDecodeTrainRoundTrip(t *testing.T) {
	w1, _ := NewWagon(WagonEntry{LineID: 1, Value: NewInt(1)}, WagonEntry{LineID: 2, Value: NewText("a")})
	w2, _ := NewWagon(WagonEntry{LineID: 1, Value: NewInt(2)})
	tr := NewTrain(NewTime(5000, 1), 7, []Wagon{w1, w2})

	encoded, err := EncodeTrain(tr)
	if err != nil {
		t.Fatalf("EncodeTrain: %v", err)
	}
	decoded, n, err := DecodeTrain(encoded)
	if err != nil {
		t.Fatalf("DecodeTrain: %v", err)
	}
	if n != len(encoded) {
		t.Fatalf("DecodeTrain consumed %d bytes, want %d", n, len(encoded))
	}
	if decoded.OriginLine != 7 {
		t.Errorf("OriginLine = %d, want 7", decoded.OriginLine)
	}
	if !decoded.EventTS.Equal(tr.EventTS) {
		t.Errorf("EventTS mismatch: got %s, want %s", decoded.EventTS, tr.EventTS)
	}
	if decoded.Len() != 2 {
		t.Fatalf("expected 2 wagons, got %d", decoded.Len())
	}
	if !decoded.Wagons()[0].Equal(w1) || !decoded.Wagons()[1].Equal(w2) {
		t.Errorf("wagon mismatch after round trip")
	}
}

func TestMergeSingleTrainClones(t *testing.T) {
	w1, _ := NewWagon(WagonEntry{LineID: 1, Value: NewInt(1)})
	tr := NewTrain(NewTime(1000, 0), 1, []Wagon{w1})

	merged, err := Merge(tr)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if merged == tr {
		t.Error("expected Merge to return a distinct Train value")
	}
	if !merged.EventTS.Equal(tr.EventTS) || merged.OriginLine != tr.OriginLine {
		t.Error("expected cloned train to preserve EventTS/OriginLine")
	}
}
