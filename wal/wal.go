package wal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/data-tracks/DataTracks/component"
	"github.com/data-tracks/DataTracks/errors"
	"github.com/data-tracks/DataTracks/pkg/buffer"
	"github.com/data-tracks/DataTracks/value"
)

// segmentFileName returns the on-disk name for segment number n.
func segmentFileName(n uint32) string {
	return fmt.Sprintf("%08d.seg", n)
}

// segmentMaxBytes bounds how large an active segment grows before the WAL
// rolls to a new one. Grounded on the Rust original's SegmentedLog::new
// max-size argument (200 * 2048 * 2048 there); kept here as a package
// constant since DataTracks does not expose per-deployment segment tuning.
const segmentMaxBytes = 64 * 1024 * 1024

// Option configures a WAL using the functional options pattern (grounded
// on pkg/buffer's Option[T] and station.Option).
type Option func(*WAL)

// WithDelayRingSize bounds the in-memory delay ring used for fast
// re-dispatch to engines that are only briefly behind; records older than
// the ring's capacity must instead be recovered via Scan. Defaults to
// 4096.
func WithDelayRingSize(n int) Option {
	return func(w *WAL) { w.delayRingSize = n }
}

// WithLogger attaches a logger; defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(w *WAL) { w.logger = logger }
}

// WAL is the append-only, segment-backed write-ahead log a station's
// emitted trains pass through, via its Recorder, before they reach an
// engine persister (C8). It assigns each
// appended train a monotonically increasing LSN, fsyncs the active segment
// once per batch, and keeps a bounded in-memory delay ring so an engine
// persister that is only briefly behind can re-read recent trains without
// touching disk.
type WAL struct {
	dir           string
	delayRingSize int
	logger        *slog.Logger

	mu          sync.Mutex
	state       component.State
	activeSeg   *Segment
	segNum      uint32
	segBytes    int64
	nextLSN     uint64
	delay       buffer.Buffer[Record]
	dropped     uint64
}

// Open builds a WAL rooted at dir (created if missing); call Initialize
// then Start to recover prior segments and begin accepting Appends.
func Open(dir string, opts ...Option) *WAL {
	w := &WAL{dir: dir, delayRingSize: 4096, state: component.StateCreated}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w
}

// Initialize creates the WAL directory if needed and recovers the delay
// ring and next LSN from existing segments, truncating a corrupt tail in
// the newest segment rather than refusing to start.
func (w *WAL) Initialize() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != component.StateCreated {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "wal", "Initialize", w.dir)
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return errors.WrapFatal(err, "wal", "Initialize", w.dir)
	}

	ring, err := buffer.NewCircularBuffer[Record](w.delayRingSize, buffer.WithOverflowPolicy[Record](buffer.DropOldest))
	if err != nil {
		return errors.WrapFatal(err, "wal", "Initialize", "build delay ring")
	}
	w.delay = ring

	segNums, err := w.listSegments()
	if err != nil {
		return err
	}

	for i, n := range segNums {
		path := filepath.Join(w.dir, segmentFileName(n))
		frames, corrupt, err := ScanSegment(path)
		if err != nil {
			return err
		}
		for _, frame := range frames {
			rec, err := decodeRecord(frame)
			if err != nil {
				return errors.WrapFatal(err, "wal", "Initialize", path)
			}
			if rec.LSN >= w.nextLSN {
				w.nextLSN = rec.LSN + 1
			}
			_ = w.delay.Write(rec)
		}
		if corrupt != nil {
			w.logger.Warn("wal recovery truncating corrupt tail", "segment", path, "offset", corrupt.Offset)
			if err := Truncate(path, corrupt.Offset); err != nil {
				return err
			}
			if i != len(segNums)-1 {
				return errors.WrapFatal(errors.ErrWalCorrupt, "wal", "Initialize", path)
			}
		}
		w.segNum = n
	}

	if len(segNums) == 0 {
		w.segNum = 0
	}

	w.state = component.StateInitialized
	return nil
}

func (w *WAL) listSegments() ([]uint32, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, errors.WrapFatal(err, "wal", "listSegments", w.dir)
	}
	var nums []uint32
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".seg") {
			continue
		}
		n, err := strconv.ParseUint(strings.TrimSuffix(e.Name(), ".seg"), 10, 32)
		if err != nil {
			continue
		}
		nums = append(nums, uint32(n))
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })
	return nums, nil
}

// Start opens the active segment for writing. ctx is accepted for
// LifecycleComponent symmetry with station.Station; the WAL itself runs no
// background goroutine, since Append is called synchronously by stations.
func (w *WAL) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != component.StateInitialized {
		return errors.WrapInvalid(errors.ErrNotStarted, "wal", "Start", w.dir)
	}
	seg, err := CreateSegment(filepath.Join(w.dir, segmentFileName(w.segNum)))
	if err != nil {
		return err
	}
	info, err := os.Stat(seg.Path)
	if err == nil {
		w.segBytes = info.Size()
	}
	w.activeSeg = seg
	w.state = component.StateStarted
	return nil
}

// Stop fsyncs and closes the active segment.
func (w *WAL) Stop(timeout time.Duration) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != component.StateStarted {
		return nil
	}
	if w.activeSeg != nil {
		if err := w.activeSeg.Sync(); err != nil {
			w.logger.Error("wal stop sync failed", "error", err)
		}
		if err := w.activeSeg.Close(); err != nil {
			w.logger.Error("wal stop close failed", "error", err)
		}
	}
	w.state = component.StateStopped
	return nil
}

// Append assigns the next LSN to train and writes it to the active
// segment, fsyncing before returning. It is equivalent to AppendBatch with
// a single-element batch.
func (w *WAL) Append(planID uint16, stationID uint32, train *value.Train) (uint64, error) {
	lsns, err := w.AppendBatch([]appendItem{{PlanID: planID, StationID: stationID, Train: train}})
	if err != nil {
		return 0, err
	}
	return lsns[0], nil
}

// appendItem is one train awaiting an LSN within an AppendBatch call.
type appendItem struct {
	PlanID    uint16
	StationID uint32
	Train     *value.Train
}

// AppendBatch writes every item to the active segment and fsyncs once,
// grounded on the Rust original's WalWorker batching loop
// (rx.try_iter().take(N) then a single log.log(&batch).await per batch).
// It rolls to a new segment first if the active one would exceed
// segmentMaxBytes.
func (w *WAL) AppendBatch(items []appendItem) ([]uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != component.StateStarted {
		return nil, errors.WrapInvalid(errors.ErrNotStarted, "wal", "AppendBatch", w.dir)
	}
	if len(items) == 0 {
		return nil, nil
	}

	lsns := make([]uint64, len(items))
	for i, item := range items {
		lsn := w.nextLSN
		w.nextLSN++
		lsns[i] = lsn

		rec := Record{LSN: lsn, PlanID: item.PlanID, StationID: item.StationID, Train: item.Train}
		frame, err := encodeRecord(rec)
		if err != nil {
			return nil, errors.WrapFatal(err, "wal", "AppendBatch", "encode")
		}

		if w.segBytes+int64(len(frame))+frameHeaderSize > segmentMaxBytes {
			if err := w.rollSegmentLocked(); err != nil {
				return nil, err
			}
		}

		if err := w.activeSeg.Append(frame); err != nil {
			return nil, errors.WrapTransient(err, "wal", "AppendBatch", w.activeSeg.Path)
		}
		w.segBytes += int64(len(frame)) + frameHeaderSize

		if err := w.delay.Write(rec); err != nil {
			w.dropped++
		}
	}

	if err := w.activeSeg.Sync(); err != nil {
		return nil, errors.WrapTransient(errors.ErrWalIO, "wal", "AppendBatch", "fsync")
	}
	return lsns, nil
}

func (w *WAL) rollSegmentLocked() error {
	if err := w.activeSeg.Sync(); err != nil {
		return errors.WrapTransient(err, "wal", "rollSegment", "sync previous")
	}
	if err := w.activeSeg.Close(); err != nil {
		return errors.WrapTransient(err, "wal", "rollSegment", "close previous")
	}
	w.segNum++
	seg, err := CreateSegment(filepath.Join(w.dir, segmentFileName(w.segNum)))
	if err != nil {
		return err
	}
	w.activeSeg = seg
	w.segBytes = 0
	return nil
}

// RecentSince returns every delay-ring record with LSN >= fromLSN, in
// ascending LSN order, along with whether the ring still held everything
// since fromLSN (false means the caller must fall back to Scan because the
// ring dropped older entries under overflow).
func (w *WAL) RecentSince(fromLSN uint64) ([]Record, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	all := w.delay.ReadBatch(w.delay.Size())
	for _, rec := range all {
		_ = w.delay.Write(rec)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].LSN < all[j].LSN })

	if len(all) > 0 && all[0].LSN > fromLSN {
		return filterFrom(all, fromLSN), false
	}
	return filterFrom(all, fromLSN), true
}

func filterFrom(all []Record, fromLSN uint64) []Record {
	out := make([]Record, 0, len(all))
	for _, rec := range all {
		if rec.LSN >= fromLSN {
			out = append(out, rec)
		}
	}
	return out
}

// Scan reads every record with LSN >= fromLSN from disk, across all
// segments in order. Used for recovery replay when an engine has fallen
// further behind than the delay ring retains.
func (w *WAL) Scan(fromLSN uint64) ([]Record, error) {
	segNums, err := w.listSegments()
	if err != nil {
		return nil, err
	}
	var out []Record
	for _, n := range segNums {
		path := filepath.Join(w.dir, segmentFileName(n))
		frames, corrupt, err := ScanSegment(path)
		if err != nil {
			return nil, err
		}
		for _, frame := range frames {
			rec, err := decodeRecord(frame)
			if err != nil {
				return nil, errors.WrapFatal(err, "wal", "Scan", path)
			}
			if rec.LSN >= fromLSN {
				out = append(out, rec)
			}
		}
		if corrupt != nil {
			w.logger.Warn("wal scan hit corrupt tail", "segment", path, "offset", corrupt.Offset)
			break
		}
	}
	return out, nil
}

// NextLSN returns the LSN that would be assigned to the next appended
// record.
func (w *WAL) NextLSN() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.nextLSN
}
