package wal

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/data-tracks/DataTracks/value"
)

func mustWagon(t *testing.T, entries ...value.WagonEntry) value.Wagon {
	t.Helper()
	w, err := value.NewWagon(entries...)
	if err != nil {
		t.Fatalf("NewWagon: %v", err)
	}
	return w
}

func openStarted(t *testing.T, dir string, opts ...Option) *WAL {
	t.Helper()
	w := Open(dir, opts...)
	if err := w.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return w
}

func TestAppendAssignsIncreasingLSNs(t *testing.T) {
	dir := t.TempDir()
	w := openStarted(t, dir)
	defer w.Stop(time.Second)

	row := mustWagon(t, value.WagonEntry{LineID: 1, Value: value.NewInt(1)})
	train := value.NewTrain(value.NewTime(0, 0), 1, []value.Wagon{row})

	lsn0, err := w.Append(1, 1, train)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	lsn1, err := w.Append(1, 1, train)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if lsn0 != 0 || lsn1 != 1 {
		t.Fatalf("expected LSNs 0,1, got %d,%d", lsn0, lsn1)
	}
}

func TestRecentSinceServesFromDelayRing(t *testing.T) {
	dir := t.TempDir()
	w := openStarted(t, dir, WithDelayRingSize(16))
	defer w.Stop(time.Second)

	row := mustWagon(t, value.WagonEntry{LineID: 1, Value: value.NewInt(1)})
	train := value.NewTrain(value.NewTime(0, 0), 1, []value.Wagon{row})

	for i := 0; i < 5; i++ {
		if _, err := w.Append(1, 1, train); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	recs, fromRing := w.RecentSince(2)
	if !fromRing {
		t.Fatal("expected RecentSince to be served entirely from the delay ring")
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records (lsn 2,3,4), got %d", len(recs))
	}
	for i, rec := range recs {
		if rec.LSN != uint64(2+i) {
			t.Errorf("record %d: LSN = %d, want %d", i, rec.LSN, 2+i)
		}
	}
}

func TestReopenRecoversNextLSNAndDelayRing(t *testing.T) {
	dir := t.TempDir()
	w := openStarted(t, dir)

	row := mustWagon(t, value.WagonEntry{LineID: 1, Value: value.NewInt(7)})
	train := value.NewTrain(value.NewTime(0, 0), 1, []value.Wagon{row})
	for i := 0; i < 3; i++ {
		if _, err := w.Append(1, 1, train); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := w.Stop(time.Second); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	w2 := openStarted(t, dir)
	defer w2.Stop(time.Second)

	if got := w2.NextLSN(); got != 3 {
		t.Fatalf("NextLSN after reopen = %d, want 3", got)
	}

	lsn, err := w2.Append(1, 1, train)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if lsn != 3 {
		t.Fatalf("expected next LSN to be 3, got %d", lsn)
	}
}

func TestScanReturnsRecordsFromLSN(t *testing.T) {
	dir := t.TempDir()
	w := openStarted(t, dir)
	defer w.Stop(time.Second)

	row := mustWagon(t, value.WagonEntry{LineID: 1, Value: value.NewInt(1)})
	train := value.NewTrain(value.NewTime(123, 0), 9, []value.Wagon{row})
	for i := 0; i < 4; i++ {
		if _, err := w.Append(2, 5, train); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	recs, err := w.Scan(1)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records from lsn 1, got %d", len(recs))
	}
	if recs[0].PlanID != 2 || recs[0].StationID != 5 {
		t.Errorf("unexpected plan/station id on recovered record: %+v", recs[0])
	}
}

func TestRecoveryTruncatesCorruptTail(t *testing.T) {
	dir := t.TempDir()
	w := openStarted(t, dir)

	row := mustWagon(t, value.WagonEntry{LineID: 1, Value: value.NewInt(1)})
	train := value.NewTrain(value.NewTime(0, 0), 1, []value.Wagon{row})
	if _, err := w.Append(1, 1, train); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := w.Append(1, 1, train); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Stop(time.Second); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	segPath := filepath.Join(dir, segmentFileName(0))
	info, err := os.Stat(segPath)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}

	f, err := os.OpenFile(segPath, os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	var corruptChecksum [4]byte
	binary.BigEndian.PutUint32(corruptChecksum[:], 0xdeadbeef)
	if _, err := f.WriteAt(corruptChecksum[:], info.Size()-8); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	f.Close()

	w2 := openStarted(t, dir)
	defer w2.Stop(time.Second)

	if got := w2.NextLSN(); got != 1 {
		t.Fatalf("expected recovery to keep only the first valid record (NextLSN=1), got %d", got)
	}
}
