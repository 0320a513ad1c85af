package value

import (
	"fmt"

	"github.com/data-tracks/DataTracks/errors"
)

// Train is a batch of Wagons carrying one event timestamp and the id of the
// line it was produced on. Trains are immutable once placed on a line: Merge and
// ProjectTrain return a new Train with its own wagon slice, while Clone
// shares the source's wagon slice, so cloning a Train that nothing
// downstream mutates is a cheap reference copy.
type Train struct {
	EventTS    Value // Kind() == KindTime
	OriginLine uint32
	wagons     []Wagon
}

// NewTrain builds a Train from wagons in order. wagons is copied so the
// caller's backing slice can be reused.
func NewTrain(eventTS Value, originLine uint32, wagons []Wagon) *Train {
	cp := make([]Wagon, len(wagons))
	copy(cp, wagons)
	return &Train{EventTS: eventTS, OriginLine: originLine, wagons: cp}
}

// Wagons returns the train's batch of rows. The returned slice shares
// storage with t and must not be mutated by the caller.
func (t *Train) Wagons() []Wagon {
	return t.wagons
}

// Len returns the number of wagons (rows) in the batch.
func (t *Train) Len() int { return len(t.wagons) }

// Clone returns a new Train sharing t's wagon storage (copy-on-write: the
// clone's own With/Merge calls never touch t's slice).
func (t *Train) Clone() *Train {
	return &Train{EventTS: t.EventTS, OriginLine: t.OriginLine, wagons: t.wagons}
}

// Merge concatenates the i-th wagon of each train row-wise into a single
// wagon, failing with errors.ErrLineCollision if two input trains disagree
// on the value of the same non-null line id at the same row. The result's
// EventTS is the maximum of the inputs' (watermark-safe); OriginLine is
// taken from the first train, since a merged train no longer has a single
// logical origin.
func Merge(trains ...*Train) (*Train, error) {
	if len(trains) == 0 {
		return nil, errors.WrapInvalid(fmt.Errorf("no trains given"), "value", "Merge", "merge trains")
	}
	if len(trains) == 1 {
		return trains[0].Clone(), nil
	}

	maxLen := 0
	for _, tr := range trains {
		if tr.Len() > maxLen {
			maxLen = tr.Len()
		}
	}

	merged := make([]Wagon, maxLen)
	for row := 0; row < maxLen; row++ {
		acc := Wagon{}
		for _, tr := range trains {
			if row >= len(tr.wagons) {
				continue
			}
			for _, entry := range tr.wagons[row].Entries() {
				existing, ok := acc.Get(entry.LineID)
				if ok && !entry.Value.IsNull() && !existing.IsNull() && !existing.Equal(entry.Value) {
					return nil, errors.WrapInvalid(errors.ErrLineCollision, "value", "Merge",
						fmt.Sprintf("row %d line %d", row, entry.LineID))
				}
				if !ok || existing.IsNull() {
					acc = acc.With(entry.LineID, entry.Value)
				}
			}
		}
		merged[row] = acc
	}

	eventTS := trains[0].EventTS
	for _, tr := range trains[1:] {
		ms1, ns1, ok1 := eventTS.Time()
		ms2, ns2, ok2 := tr.EventTS.Time()
		if ok1 && ok2 && (ms2 > ms1 || (ms2 == ms1 && ns2 > ns1)) {
			eventTS = tr.EventTS
		}
	}

	return &Train{EventTS: eventTS, OriginLine: trains[0].OriginLine, wagons: merged}, nil
}

// EncodeTrain serializes t using the Value codec verbatim (C1), as
// [event_ts, origin_line, [wagon_dict, ...]] - the representation the WAL
// and /channel wire frames persist.
func EncodeTrain(t *Train) ([]byte, error) {
	wagonValues := make([]Value, len(t.wagons))
	for i, w := range t.wagons {
		wagonValues[i] = NewDict(w.ToDict())
	}
	frame := NewArray([]Value{t.EventTS, NewInt(int64(t.OriginLine)), NewArray(wagonValues)})
	return Encode(frame)
}

// DecodeTrain reverses EncodeTrain, returning the Train and bytes consumed.
func DecodeTrain(b []byte) (*Train, int, error) {
	v, n, err := Decode(b)
	if err != nil {
		return nil, n, err
	}
	items, ok := v.Array()
	if !ok || len(items) != 3 {
		return nil, n, fmt.Errorf("value: malformed train frame")
	}
	originLine, ok := items[1].Int()
	if !ok {
		return nil, n, fmt.Errorf("value: malformed train frame: origin_line")
	}
	wagonValues, ok := items[2].Array()
	if !ok {
		return nil, n, fmt.Errorf("value: malformed train frame: wagons")
	}
	wagons := make([]Wagon, len(wagonValues))
	for i, wv := range wagonValues {
		d, ok := wv.DictValue()
		if !ok {
			return nil, n, fmt.Errorf("value: malformed train frame: wagon %d", i)
		}
		w, err := DictToWagon(d)
		if err != nil {
			return nil, n, err
		}
		wagons[i] = w
	}
	return &Train{EventTS: items[0], OriginLine: uint32(originLine), wagons: wagons}, n, nil
}

// ProjectTrain restricts every wagon in t to keys, returning a new Train.
func ProjectTrain(t *Train, keys []uint32) *Train {
	out := make([]Wagon, len(t.wagons))
	for i, w := range t.wagons {
		out[i] = Project(w, keys)
	}
	return &Train{EventTS: t.EventTS, OriginLine: t.OriginLine, wagons: out}
}
