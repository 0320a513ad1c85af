package value

import (
	"fmt"
	"strconv"
)

// WagonEntry is one line_id -> Value pair of a Wagon, in insertion order.
// Positions correspond to the upstream line numbers a transform addresses
// as $N.
type WagonEntry struct {
	LineID uint32
	Value  Value
}

// Wagon is a single row: an ordered line_id -> Value map. Like Dict, it is
// slice-backed so serialization order is deterministic and matches the
// order lines were attached to the station that produced the wagon.
type Wagon struct {
	entries []WagonEntry
}

// NewWagon builds a Wagon from entries in line-id order as given; duplicate
// line ids are rejected since a wagon carries at most one value per line.
func NewWagon(entries ...WagonEntry) (Wagon, error) {
	seen := make(map[uint32]struct{}, len(entries))
	cp := make([]WagonEntry, 0, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.LineID]; dup {
			return Wagon{}, &DuplicateLineError{LineID: e.LineID}
		}
		seen[e.LineID] = struct{}{}
		cp = append(cp, e)
	}
	return Wagon{entries: cp}, nil
}

// DuplicateLineError reports a Wagon built with a repeated line id.
type DuplicateLineError struct {
	LineID uint32
}

func (e *DuplicateLineError) Error() string {
	return "value: duplicate wagon line id"
}

// Len returns the number of line entries.
func (w Wagon) Len() int { return len(w.entries) }

// Get returns the value arriving on lineID, and whether it is present.
func (w Wagon) Get(lineID uint32) (Value, bool) {
	for _, e := range w.entries {
		if e.LineID == lineID {
			return e.Value, true
		}
	}
	return Value{}, false
}

// Entries returns a copy of the ordered entries.
func (w Wagon) Entries() []WagonEntry {
	cp := make([]WagonEntry, len(w.entries))
	copy(cp, w.entries)
	return cp
}

// LineIDs returns the line ids in wagon order.
func (w Wagon) LineIDs() []uint32 {
	ids := make([]uint32, len(w.entries))
	for i, e := range w.entries {
		ids[i] = e.LineID
	}
	return ids
}

// With returns a new Wagon with lineID set to val, leaving w untouched
// (copy-on-write): an existing entry is replaced in place, a new one is
// appended.
func (w Wagon) With(lineID uint32, val Value) Wagon {
	for i, e := range w.entries {
		if e.LineID == lineID {
			cp := make([]WagonEntry, len(w.entries))
			copy(cp, w.entries)
			cp[i] = WagonEntry{LineID: lineID, Value: val}
			return Wagon{entries: cp}
		}
	}
	cp := make([]WagonEntry, len(w.entries), len(w.entries)+1)
	copy(cp, w.entries)
	cp = append(cp, WagonEntry{LineID: lineID, Value: val})
	return Wagon{entries: cp}
}

// Project restricts w to the given line ids, preserving the order of keys
// as passed in. A missing line id is simply omitted from the result.
func Project(w Wagon, keys []uint32) Wagon {
	out := make([]WagonEntry, 0, len(keys))
	for _, k := range keys {
		if v, ok := w.Get(k); ok {
			out = append(out, WagonEntry{LineID: k, Value: v})
		}
	}
	return Wagon{entries: out}
}

// ToDict renders w as a Dict keyed by the decimal string form of each line
// id, preserving order - used by the WAL/wire codec to fold a Wagon into
// the Value tagged union so it can ride inside an Array frame.
func (w Wagon) ToDict() Dict {
	entries := make([]DictEntry, len(w.entries))
	for i, e := range w.entries {
		entries[i] = DictEntry{Key: strconv.FormatUint(uint64(e.LineID), 10), Value: e.Value}
	}
	d, _ := NewDictFromEntries(entries...) // line ids are already unique by construction
	return d
}

// DictToWagon reverses ToDict.
func DictToWagon(d Dict) (Wagon, error) {
	entries := make([]WagonEntry, 0, d.Len())
	for _, e := range d.Entries() {
		id, err := strconv.ParseUint(e.Key, 10, 32)
		if err != nil {
			return Wagon{}, fmt.Errorf("value: wagon dict key %q is not a line id: %w", e.Key, err)
		}
		entries = append(entries, WagonEntry{LineID: uint32(id), Value: e.Value})
	}
	return NewWagon(entries...)
}

// Equal reports structural, order-sensitive equality between two Wagons.
func (w Wagon) Equal(other Wagon) bool {
	if len(w.entries) != len(other.entries) {
		return false
	}
	for i := range w.entries {
		if w.entries[i].LineID != other.entries[i].LineID {
			return false
		}
		if !w.entries[i].Value.Equal(other.entries[i].Value) {
			return false
		}
	}
	return true
}
