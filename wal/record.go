package wal

import (
	"encoding/binary"
	"fmt"

	"github.com/data-tracks/DataTracks/value"
)

// Record is one WAL entry: the train that arrived on (planID, stationID),
// tagged with the monotonic sequence number (LSN) assigned at append time.
// The train itself is encoded with the same Value codec used on the wire
// (value.EncodeTrain) - the WAL adds only the framing envelope below it.
type Record struct {
	LSN       uint64
	PlanID    uint16
	StationID uint32
	Train     *value.Train
}

// encodeRecord serializes r as: lsn(8) | plan_id(2) | station_id(4) |
// train_len(4) | train_bytes.
func encodeRecord(r Record) ([]byte, error) {
	trainBytes, err := value.EncodeTrain(r.Train)
	if err != nil {
		return nil, fmt.Errorf("wal: encode record train: %w", err)
	}
	buf := make([]byte, 8+2+4+4+len(trainBytes))
	binary.BigEndian.PutUint64(buf[0:8], r.LSN)
	binary.BigEndian.PutUint16(buf[8:10], r.PlanID)
	binary.BigEndian.PutUint32(buf[10:14], r.StationID)
	binary.BigEndian.PutUint32(buf[14:18], uint32(len(trainBytes)))
	copy(buf[18:], trainBytes)
	return buf, nil
}

// decodeRecord reverses encodeRecord.
func decodeRecord(b []byte) (Record, error) {
	if len(b) < 18 {
		return Record{}, fmt.Errorf("wal: record frame too short (%d bytes)", len(b))
	}
	lsn := binary.BigEndian.Uint64(b[0:8])
	planID := binary.BigEndian.Uint16(b[8:10])
	stationID := binary.BigEndian.Uint32(b[10:14])
	trainLen := binary.BigEndian.Uint32(b[14:18])
	if uint32(len(b)-18) < trainLen {
		return Record{}, fmt.Errorf("wal: record frame truncated train payload")
	}
	train, n, err := value.DecodeTrain(b[18 : 18+trainLen])
	if err != nil {
		return Record{}, fmt.Errorf("wal: decode record train: %w", err)
	}
	if uint32(n) != trainLen {
		return Record{}, fmt.Errorf("wal: record train frame length mismatch")
	}
	return Record{LSN: lsn, PlanID: planID, StationID: stationID, Train: train}, nil
}
