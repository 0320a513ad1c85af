// Package wal implements the append-only write-ahead log (C8): segment
// files of length-prefixed, checksummed frames, a bounded in-memory delay
// ring for fast re-dispatch to engines that are only briefly behind, and
// recovery that truncates a corrupt tail and continues rather than
// refusing to start.
package wal

import (
	"encoding/binary"
	"hash/crc32"
	"os"

	"github.com/data-tracks/DataTracks/errors"
)

// frameHeaderSize is the length of the u32 length | u32 crc32 header that
// precedes every WAL frame's payload.
const frameHeaderSize = 8

// Segment is one append-only file under $DATA_DIR/wal/. The active segment
// is fsync'd once per Append/AppendBatch call.
type Segment struct {
	Path string
	file *os.File
}

// CreateSegment opens (creating if necessary) path for append-only writes.
func CreateSegment(path string) (*Segment, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.WrapTransient(err, "wal", "CreateSegment", path)
	}
	return &Segment{Path: path, file: f}, nil
}

// Append writes one frame (len|crc32|payload) to the segment without
// fsyncing - call Sync once per batch.
func (s *Segment) Append(payload []byte) error {
	var header [frameHeaderSize]byte
	binary.BigEndian.PutUint32(header[0:4], uint32(len(payload)))
	binary.BigEndian.PutUint32(header[4:8], crc32.ChecksumIEEE(payload))
	if _, err := s.file.Write(header[:]); err != nil {
		return errors.WrapTransient(err, "wal", "Append", s.Path)
	}
	if _, err := s.file.Write(payload); err != nil {
		return errors.WrapTransient(err, "wal", "Append", s.Path)
	}
	return nil
}

// Sync fsyncs the segment file.
func (s *Segment) Sync() error {
	if err := s.file.Sync(); err != nil {
		return errors.WrapTransient(err, "wal", "Sync", s.Path)
	}
	return nil
}

// Close closes the segment file.
func (s *Segment) Close() error {
	return s.file.Close()
}

// CorruptError reports a checksum mismatch or truncated frame found during
// segment recovery, at the given byte offset within the segment.
type CorruptError struct {
	Segment string
	Offset  int64
}

func (e *CorruptError) Error() string {
	return errors.WrapFatal(errors.ErrWalCorrupt, "wal", "recover", e.Segment).Error()
}

// ScanSegment reads every valid frame from path in order. If a frame's
// checksum doesn't match or the file ends mid-frame, ScanSegment stops and
// returns the frames read so far plus a non-nil *CorruptError naming the
// offset recovery should truncate the file to - it never fails the whole
// read outright.
func ScanSegment(path string) ([][]byte, *CorruptError, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, errors.WrapTransient(err, "wal", "ScanSegment", path)
	}

	var frames [][]byte
	offset := int64(0)
	for offset < int64(len(data)) {
		if offset+frameHeaderSize > int64(len(data)) {
			return frames, &CorruptError{Segment: path, Offset: offset}, nil
		}
		length := binary.BigEndian.Uint32(data[offset : offset+4])
		checksum := binary.BigEndian.Uint32(data[offset+4 : offset+8])
		payloadStart := offset + frameHeaderSize
		payloadEnd := payloadStart + int64(length)
		if payloadEnd > int64(len(data)) {
			return frames, &CorruptError{Segment: path, Offset: offset}, nil
		}
		payload := data[payloadStart:payloadEnd]
		if crc32.ChecksumIEEE(payload) != checksum {
			return frames, &CorruptError{Segment: path, Offset: offset}, nil
		}
		frames = append(frames, payload)
		offset = payloadEnd
	}
	return frames, nil, nil
}

// Truncate truncates the file at path to offset, discarding a corrupt tail
// found by ScanSegment.
func Truncate(path string, offset int64) error {
	if err := os.Truncate(path, offset); err != nil {
		return errors.WrapFatal(err, "wal", "Truncate", path)
	}
	return nil
}
