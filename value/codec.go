package value

import (
	"encoding/binary"
	"fmt"
)

// CodecError reports a failure to decode a Value frame: truncated input or
// an unknown type tag. Classified as invalid (not transient) by the errors
// package, since retrying a decode of the same bytes never helps.
type CodecError struct {
	Reason string
	Offset int
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("value: codec error at offset %d: %s", e.Offset, e.Reason)
}

func truncated(offset int) error {
	return &CodecError{Reason: "truncated input", Offset: offset}
}

// Encode serializes v as a length-prefixed-less binary frame: a single
// u8 type_tag followed by the tag's payload, per the wire layout in the
// data model. Nested Values (Array/Dict/Node/Edge elements) are encoded
// inline with no outer length prefix of their own - the caller wraps whole
// frames (WAL records, /channel messages) with their own length prefix.
func Encode(v Value) ([]byte, error) {
	buf := make([]byte, 0, 32)
	return appendValue(buf, v)
}

func appendValue(buf []byte, v Value) ([]byte, error) {
	buf = append(buf, byte(v.kind))
	switch v.kind {
	case KindNull:
		return buf, nil
	case KindInt:
		return appendInt64(buf, v.i), nil
	case KindFloat:
		buf = appendInt64(buf, v.i)
		buf = append(buf, v.shift)
		return buf, nil
	case KindBool:
		if v.b {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
		return buf, nil
	case KindText:
		return appendText(buf, v.text), nil
	case KindTime:
		buf = appendInt64(buf, v.i)
		buf = appendUint32(buf, v.ns)
		return buf, nil
	case KindDate:
		return appendInt64(buf, v.i), nil
	case KindArray:
		buf = appendUint32(buf, uint32(len(v.arr)))
		var err error
		for _, el := range v.arr {
			buf, err = appendValue(buf, el)
			if err != nil {
				return nil, err
			}
		}
		return buf, nil
	case KindDict:
		return appendDict(buf, v.dict)
	case KindNode:
		buf = appendInt64(buf, v.i)
		buf = appendUint32(buf, uint32(len(v.labels)))
		for _, l := range v.labels {
			buf = appendText(buf, l)
		}
		return appendDict(buf, v.dict)
	case KindEdge:
		buf = appendInt64(buf, v.i)
		buf = appendText(buf, v.text)
		startID, endID := int64(0), int64(0)
		if v.edge != nil {
			startID, endID = v.edge.startID, v.edge.endID
		}
		buf = appendInt64(buf, startID)
		buf = appendInt64(buf, endID)
		return appendDict(buf, v.dict)
	default:
		return nil, fmt.Errorf("value: cannot encode unknown kind %d", uint8(v.kind))
	}
}

func appendDict(buf []byte, d Dict) ([]byte, error) {
	buf = appendUint32(buf, uint32(len(d.entries)))
	var err error
	for _, e := range d.entries {
		buf = appendText(buf, e.Key)
		buf, err = appendValue(buf, e.Value)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func appendInt64(buf []byte, v int64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(v))
	return append(buf, tmp[:]...)
}

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendText(buf []byte, s string) []byte {
	buf = appendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

// Decode parses a single Value frame from the front of b, returning the
// Value and the number of bytes consumed so nested/sequential decode calls
// can advance a cursor. Decode fails with *CodecError on truncated input or
// an unrecognized type tag.
func Decode(b []byte) (Value, int, error) {
	return decodeAt(b, 0)
}

func decodeAt(b []byte, offset int) (Value, int, error) {
	if offset >= len(b) {
		return Value{}, offset, truncated(offset)
	}
	tag := Kind(b[offset])
	pos := offset + 1
	switch tag {
	case KindNull:
		return Null(), pos, nil
	case KindInt:
		n, next, err := readInt64(b, pos)
		if err != nil {
			return Value{}, pos, err
		}
		return NewInt(n), next, nil
	case KindFloat:
		m, next, err := readInt64(b, pos)
		if err != nil {
			return Value{}, pos, err
		}
		if next >= len(b) {
			return Value{}, pos, truncated(next)
		}
		shift := b[next]
		return NewFloat(m, shift), next + 1, nil
	case KindBool:
		if pos >= len(b) {
			return Value{}, pos, truncated(pos)
		}
		return NewBool(b[pos] != 0), pos + 1, nil
	case KindText:
		s, next, err := readText(b, pos)
		if err != nil {
			return Value{}, pos, err
		}
		return NewText(s), next, nil
	case KindTime:
		ms, next, err := readInt64(b, pos)
		if err != nil {
			return Value{}, pos, err
		}
		ns, next2, err := readUint32(b, next)
		if err != nil {
			return Value{}, pos, err
		}
		if ns >= 1_000_000 {
			return Value{}, pos, &CodecError{Reason: "time ns remainder out of range", Offset: pos}
		}
		return NewTime(ms, ns), next2, nil
	case KindDate:
		days, next, err := readInt64(b, pos)
		if err != nil {
			return Value{}, pos, err
		}
		return NewDate(days), next, nil
	case KindArray:
		count, next, err := readUint32(b, pos)
		if err != nil {
			return Value{}, pos, err
		}
		items := make([]Value, 0, count)
		for i := uint32(0); i < count; i++ {
			var el Value
			el, next, err = decodeAt(b, next)
			if err != nil {
				return Value{}, pos, err
			}
			items = append(items, el)
		}
		return NewArray(items), next, nil
	case KindDict:
		d, next, err := decodeDictAt(b, pos)
		if err != nil {
			return Value{}, pos, err
		}
		return NewDict(d), next, nil
	case KindNode:
		id, next, err := readInt64(b, pos)
		if err != nil {
			return Value{}, pos, err
		}
		count, next2, err := readUint32(b, next)
		if err != nil {
			return Value{}, pos, err
		}
		labels := make([]string, 0, count)
		for i := uint32(0); i < count; i++ {
			var l string
			l, next2, err = readText(b, next2)
			if err != nil {
				return Value{}, pos, err
			}
			labels = append(labels, l)
		}
		props, next3, err := decodeDictAt(b, next2)
		if err != nil {
			return Value{}, pos, err
		}
		return NewNode(id, labels, props), next3, nil
	case KindEdge:
		id, next, err := readInt64(b, pos)
		if err != nil {
			return Value{}, pos, err
		}
		label, next2, err := readText(b, next)
		if err != nil {
			return Value{}, pos, err
		}
		start, next3, err := readInt64(b, next2)
		if err != nil {
			return Value{}, pos, err
		}
		end, next4, err := readInt64(b, next3)
		if err != nil {
			return Value{}, pos, err
		}
		props, next5, err := decodeDictAt(b, next4)
		if err != nil {
			return Value{}, pos, err
		}
		return NewEdge(id, label, start, end, props), next5, nil
	default:
		return Value{}, offset, &CodecError{Reason: fmt.Sprintf("unknown type tag %d", uint8(tag)), Offset: offset}
	}
}

func decodeDictAt(b []byte, offset int) (Dict, int, error) {
	count, pos, err := readUint32(b, offset)
	if err != nil {
		return Dict{}, offset, err
	}
	entries := make([]DictEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		var key string
		key, pos, err = readText(b, pos)
		if err != nil {
			return Dict{}, offset, err
		}
		var v Value
		v, pos, err = decodeAt(b, pos)
		if err != nil {
			return Dict{}, offset, err
		}
		entries = append(entries, DictEntry{Key: key, Value: v})
	}
	d, err := NewDictFromEntries(entries...)
	if err != nil {
		return Dict{}, offset, &CodecError{Reason: err.Error(), Offset: offset}
	}
	return d, pos, nil
}

func readInt64(b []byte, offset int) (int64, int, error) {
	if offset+8 > len(b) {
		return 0, offset, truncated(offset)
	}
	return int64(binary.LittleEndian.Uint64(b[offset : offset+8])), offset + 8, nil
}

func readUint32(b []byte, offset int) (uint32, int, error) {
	if offset+4 > len(b) {
		return 0, offset, truncated(offset)
	}
	return binary.LittleEndian.Uint32(b[offset : offset+4]), offset + 4, nil
}

func readText(b []byte, offset int) (string, int, error) {
	n, pos, err := readUint32(b, offset)
	if err != nil {
		return "", offset, err
	}
	end := pos + int(n)
	if end < pos || end > len(b) {
		return "", offset, truncated(offset)
	}
	return string(b[pos:end]), end, nil
}
