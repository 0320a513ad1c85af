package persist

import (
	"path/filepath"
	"testing"
)

func TestOffsetsSaveLoadRoundTrip(t *testing.T) {
	o, err := OpenOffsets(filepath.Join(t.TempDir(), "offsets.db"))
	if err != nil {
		t.Fatalf("OpenOffsets: %v", err)
	}
	defer o.Close()

	lsn, err := o.Load("engine-1", "def-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if lsn != 0 {
		t.Fatalf("expected 0 for unseen binding, got %d", lsn)
	}

	if err := o.Save("engine-1", "def-1", 42); err != nil {
		t.Fatalf("Save: %v", err)
	}
	lsn, err = o.Load("engine-1", "def-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if lsn != 42 {
		t.Fatalf("expected 42, got %d", lsn)
	}

	if err := o.Save("engine-1", "def-1", 43); err != nil {
		t.Fatalf("Save (update): %v", err)
	}
	lsn, err = o.Load("engine-1", "def-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if lsn != 43 {
		t.Fatalf("expected 43 after update, got %d", lsn)
	}

	lsn, err = o.Load("engine-2", "def-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if lsn != 0 {
		t.Fatalf("expected distinct binding to remain 0, got %d", lsn)
	}
}
