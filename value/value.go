// Package value implements the DataTracks tagged-union payload model and its
// tag-prefixed binary encoding (codec.go). Every record that crosses a Line, sits in
// the WAL, or goes out over a /channel websocket frame is a Value.
package value

import (
	"fmt"
	"strings"
)

// Kind discriminates the variants of the Value tagged union. The numeric
// values are the wire type tags used by the binary codec (codec.go) and
// MUST stay stable - they are persisted in WAL segments.
type Kind uint8

const (
	KindNull  Kind = 0
	KindInt   Kind = 1
	KindFloat Kind = 2
	KindBool  Kind = 3
	KindText  Kind = 4
	KindTime  Kind = 5
	KindDate  Kind = 6
	KindArray Kind = 7
	KindDict  Kind = 8
	KindNode  Kind = 9
	KindEdge  Kind = 10
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindInt:
		return "Int"
	case KindFloat:
		return "Float"
	case KindBool:
		return "Bool"
	case KindText:
		return "Text"
	case KindTime:
		return "Time"
	case KindDate:
		return "Date"
	case KindArray:
		return "Array"
	case KindDict:
		return "Dict"
	case KindNode:
		return "Node"
	case KindEdge:
		return "Edge"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Value is the closed tagged union described in the data model: Int, Float
// (decimal mantissa+shift), Bool, Text, Time, Date, Array, Dict, Node, Edge
// and Null. It is a value type (not an interface) so exhaustive matching on
// Kind is a plain switch and equality/ordering never need type assertions.
//
// Only the fields relevant to Kind are populated; callers go through the
// constructors (NewInt, NewFloat, ...) rather than building a Value by hand.
type Value struct {
	kind Kind

	i     int64   // Int, Float.mantissa, Time.ms, Date.days, Node/Edge.id, Edge.start/end via edge fields below
	shift uint8   // Float.shift
	ns    uint32  // Time.ns
	b     bool    // Bool
	text  string  // Text, Node labels share via labels slice, Edge.label
	arr   []Value // Array elements
	dict  Dict    // Dict / Node.properties / Edge.properties

	labels []string // Node.labels
	edge   *edgeFields
}

// edgeFields holds the extra Edge-only scalars so the common Value struct
// doesn't carry two int64 fields (start/end) for every other Kind.
type edgeFields struct {
	startID int64
	endID   int64
}

// Null is the singleton null value.
func Null() Value { return Value{kind: KindNull} }

// NewInt constructs an Int value.
func NewInt(v int64) Value { return Value{kind: KindInt, i: v} }

// NewFloat constructs a decimal Float value: mantissa * 10^-shift.
func NewFloat(mantissa int64, shift uint8) Value {
	return Value{kind: KindFloat, i: mantissa, shift: shift}
}

// NewBool constructs a Bool value.
func NewBool(v bool) Value { return Value{kind: KindBool, b: v} }

// NewText constructs a Text value.
func NewText(v string) Value { return Value{kind: KindText, text: v} }

// NewTime constructs a Time value: milliseconds since epoch plus sub-millisecond
// nanosecond remainder (ns must be < 1_000_000, enforced by the codec on decode).
func NewTime(ms int64, ns uint32) Value { return Value{kind: KindTime, i: ms, ns: ns} }

// NewDate constructs a Date value: whole days since epoch.
func NewDate(days int64) Value { return Value{kind: KindDate, i: days} }

// NewArray constructs an Array value. The slice is copied so the caller's
// backing array can be reused safely.
func NewArray(items []Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindArray, arr: cp}
}

// NewDict constructs a Dict value from an already-built Dict.
func NewDict(d Dict) Value { return Value{kind: KindDict, dict: d} }

// NewNode constructs a Node value.
func NewNode(id int64, labels []string, properties Dict) Value {
	cp := make([]string, len(labels))
	copy(cp, labels)
	return Value{kind: KindNode, i: id, labels: cp, dict: properties}
}

// NewEdge constructs an Edge value.
func NewEdge(id int64, label string, startID, endID int64, properties Dict) Value {
	return Value{
		kind: KindEdge,
		i:    id,
		text: label,
		dict: properties,
		edge: &edgeFields{startID: startID, endID: endID},
	}
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the Null variant.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Int returns the Int payload. Ok is false if v is not an Int.
func (v Value) Int() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.i, true
}

// Float returns the Float payload (mantissa, shift). Ok is false if v is not a Float.
func (v Value) Float() (mantissa int64, shift uint8, ok bool) {
	if v.kind != KindFloat {
		return 0, 0, false
	}
	return v.i, v.shift, true
}

// FloatValue returns the Float payload as a float64 approximation, convenient
// for arithmetic and comparisons outside the codec's exact-decimal path.
func (v Value) FloatValue() (float64, bool) {
	m, s, ok := v.Float()
	if !ok {
		return 0, false
	}
	f := float64(m)
	for i := uint8(0); i < s; i++ {
		f /= 10
	}
	return f, true
}

// Bool returns the Bool payload.
func (v Value) Bool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// Text returns the Text payload.
func (v Value) Text() (string, bool) {
	if v.kind != KindText {
		return "", false
	}
	return v.text, true
}

// Time returns the Time payload (ms since epoch, sub-ms ns remainder).
func (v Value) Time() (ms int64, ns uint32, ok bool) {
	if v.kind != KindTime {
		return 0, 0, false
	}
	return v.i, v.ns, true
}

// Date returns the Date payload (days since epoch).
func (v Value) Date() (int64, bool) {
	if v.kind != KindDate {
		return 0, false
	}
	return v.i, true
}

// Array returns the Array payload. The returned slice is a copy.
func (v Value) Array() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	cp := make([]Value, len(v.arr))
	copy(cp, v.arr)
	return cp, true
}

// DictValue returns the Dict payload.
func (v Value) DictValue() (Dict, bool) {
	if v.kind != KindDict {
		return Dict{}, false
	}
	return v.dict, true
}

// Node returns the Node payload (id, labels, properties).
func (v Value) Node() (id int64, labels []string, properties Dict, ok bool) {
	if v.kind != KindNode {
		return 0, nil, Dict{}, false
	}
	cp := make([]string, len(v.labels))
	copy(cp, v.labels)
	return v.i, cp, v.dict, true
}

// Edge returns the Edge payload (id, label, start, end, properties).
func (v Value) Edge() (id int64, label string, startID, endID int64, properties Dict, ok bool) {
	if v.kind != KindEdge || v.edge == nil {
		return 0, "", 0, 0, Dict{}, false
	}
	return v.i, v.text, v.edge.startID, v.edge.endID, v.dict, true
}

// Equal reports structural equality between v and other, per the
// structural-equality invariant in the data model.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindInt:
		return v.i == other.i
	case KindFloat:
		return v.i == other.i && v.shift == other.shift
	case KindBool:
		return v.b == other.b
	case KindText:
		return v.text == other.text
	case KindTime:
		return v.i == other.i && v.ns == other.ns
	case KindDate:
		return v.i == other.i
	case KindArray:
		if len(v.arr) != len(other.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(other.arr[i]) {
				return false
			}
		}
		return true
	case KindDict:
		return v.dict.Equal(other.dict)
	case KindNode:
		if v.i != other.i || len(v.labels) != len(other.labels) {
			return false
		}
		for i := range v.labels {
			if v.labels[i] != other.labels[i] {
				return false
			}
		}
		return v.dict.Equal(other.dict)
	case KindEdge:
		if v.edge == nil || other.edge == nil {
			return v.edge == other.edge
		}
		return v.i == other.i && v.text == other.text &&
			v.edge.startID == other.edge.startID && v.edge.endID == other.edge.endID &&
			v.dict.Equal(other.dict)
	default:
		return false
	}
}

// Compare orders v against other. Ordering is defined only for Int, Float
// (after normalization to float64), Time, Date and Text (byte-wise
// lexicographic), per the data model invariant; Compare panics for any other
// Kind pairing or a Kind mismatch - callers that sort mixed values must guard
// with Kind() first.
func (v Value) Compare(other Value) int {
	if v.kind != other.kind {
		panic(fmt.Sprintf("value: Compare called on mismatched kinds %s vs %s", v.kind, other.kind))
	}
	switch v.kind {
	case KindInt:
		return compareInt64(v.i, other.i)
	case KindFloat:
		a, _ := v.FloatValue()
		b, _ := other.FloatValue()
		return compareFloat64(a, b)
	case KindTime:
		if c := compareInt64(v.i, other.i); c != 0 {
			return c
		}
		return compareInt64(int64(v.ns), int64(other.ns))
	case KindDate:
		return compareInt64(v.i, other.i)
	case KindText:
		return strings.Compare(v.text, other.text)
	default:
		panic(fmt.Sprintf("value: Kind %s has no defined ordering", v.kind))
	}
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// String renders a debug representation of v. Not used for serialization.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		f, _ := v.FloatValue()
		return fmt.Sprintf("%g", f)
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindText:
		return fmt.Sprintf("%q", v.text)
	case KindTime:
		return fmt.Sprintf("Time(%d,%d)", v.i, v.ns)
	case KindDate:
		return fmt.Sprintf("Date(%d)", v.i)
	case KindArray:
		parts := make([]string, len(v.arr))
		for i, e := range v.arr {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ",") + "]"
	case KindDict:
		return v.dict.String()
	case KindNode:
		return fmt.Sprintf("Node(%d,%v,%s)", v.i, v.labels, v.dict.String())
	case KindEdge:
		var start, end int64
		if v.edge != nil {
			start, end = v.edge.startID, v.edge.endID
		}
		return fmt.Sprintf("Edge(%d,%s,%d->%d,%s)", v.i, v.text, start, end, v.dict.String())
	default:
		return "?"
	}
}
