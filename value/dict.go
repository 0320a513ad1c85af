package value

import "strings"

// DictEntry is one key/value pair of a Dict, in insertion order.
type DictEntry struct {
	Key   string
	Value Value
}

// Dict is an ordered key -> Value map with unique keys. Per the Dict/Wagon
// ordering decision (iteration order is semantically significant for stable
// serialization), it is backed by an explicit slice rather than a Go map -
// a Go map's iteration order is randomized and would make codec output
// non-deterministic across runs.
type Dict struct {
	entries []DictEntry
}

// NewDictEmpty returns an empty Dict.
func NewDictEmpty() Dict { return Dict{} }

// NewDictFromEntries builds a Dict from entries in order, returning an error
// if any key repeats.
func NewDictFromEntries(entries ...DictEntry) (Dict, error) {
	d := Dict{entries: make([]DictEntry, 0, len(entries))}
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.Key]; dup {
			return Dict{}, &DuplicateKeyError{Key: e.Key}
		}
		seen[e.Key] = struct{}{}
		d.entries = append(d.entries, e)
	}
	return d, nil
}

// DuplicateKeyError reports a Dict built with a repeated key.
type DuplicateKeyError struct {
	Key string
}

func (e *DuplicateKeyError) Error() string {
	return "value: duplicate dict key " + e.Key
}

// Len returns the number of entries.
func (d Dict) Len() int { return len(d.entries) }

// Get returns the value for key, and whether it was present.
func (d Dict) Get(key string) (Value, bool) {
	for _, e := range d.entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return Value{}, false
}

// Keys returns the keys in insertion order.
func (d Dict) Keys() []string {
	keys := make([]string, len(d.entries))
	for i, e := range d.entries {
		keys[i] = e.Key
	}
	return keys
}

// Entries returns a copy of the ordered entries.
func (d Dict) Entries() []DictEntry {
	cp := make([]DictEntry, len(d.entries))
	copy(cp, d.entries)
	return cp
}

// With returns a new Dict with key set to val: if key already exists its
// value is replaced in place (order preserved), otherwise the entry is
// appended. d itself is never mutated (copy-on-write).
func (d Dict) With(key string, val Value) Dict {
	for i, e := range d.entries {
		if e.Key == key {
			cp := make([]DictEntry, len(d.entries))
			copy(cp, d.entries)
			cp[i] = DictEntry{Key: key, Value: val}
			return Dict{entries: cp}
		}
	}
	cp := make([]DictEntry, len(d.entries), len(d.entries)+1)
	copy(cp, d.entries)
	cp = append(cp, DictEntry{Key: key, Value: val})
	return Dict{entries: cp}
}

// Equal reports structural, order-sensitive equality between two Dicts.
func (d Dict) Equal(other Dict) bool {
	if len(d.entries) != len(other.entries) {
		return false
	}
	for i := range d.entries {
		if d.entries[i].Key != other.entries[i].Key {
			return false
		}
		if !d.entries[i].Value.Equal(other.entries[i].Value) {
			return false
		}
	}
	return true
}

// String renders a debug representation of d.
func (d Dict) String() string {
	parts := make([]string, len(d.entries))
	for i, e := range d.entries {
		parts[i] = e.Key + ":" + e.Value.String()
	}
	return "{" + strings.Join(parts, ",") + "}"
}
