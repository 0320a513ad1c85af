package value

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func roundTrip(t *testing.T, v Value) Value {
	t.Helper()
	encoded, err := Encode(v)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, n, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if n != len(encoded) {
		t.Fatalf("Decode consumed %d bytes, want %d", n, len(encoded))
	}
	return decoded
}

func TestCodecRoundTripScalars(t *testing.T) {
	cases := []Value{
		Null(),
		NewInt(0),
		NewInt(-1),
		NewInt(9_007_199_254_740_991),
		NewFloat(12345, 2),
		NewBool(true),
		NewBool(false),
		NewText(""),
		NewText("dev@x"),
		NewTime(1_700_000_000_000, 999_999),
		NewDate(19723),
	}
	for _, v := range cases {
		got := roundTrip(t, v)
		if !got.Equal(v) {
			t.Errorf("round trip mismatch: got %s, want %s", got, v)
		}
	}
}

func TestCodecRoundTripArray(t *testing.T) {
	v := NewArray([]Value{NewInt(1), NewText("a"), Null()})
	got := roundTrip(t, v)
	if !got.Equal(v) {
		t.Errorf("round trip mismatch: got %s, want %s", got, v)
	}
}

// TestCodecRoundTripNode is the S1 scenario from the spec's testable
// properties: a Node with a large id, two labels, and a Text property.
func TestCodecRoundTripNode(t *testing.T) {
	props, err := NewDictFromEntries(DictEntry{Key: "email", Value: NewText("dev@x")})
	if err != nil {
		t.Fatalf("NewDictFromEntries: %v", err)
	}
	node := NewNode(9_007_199_254_740_991, []string{"User", "Admin"}, props)

	got := roundTrip(t, node)
	if !got.Equal(node) {
		t.Errorf("round trip mismatch: got %s, want %s", got, node)
	}

	id, labels, properties, ok := got.Node()
	if !ok {
		t.Fatal("expected decoded value to be a Node")
	}
	if id != 9_007_199_254_740_991 {
		t.Errorf("id = %d, want 9007199254740991", id)
	}
	if diff := cmp.Diff([]string{"User", "Admin"}, labels); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
	email, ok := properties.Get("email")
	if !ok {
		t.Fatal("expected email property")
	}
	if s, _ := email.Text(); s != "dev@x" {
		t.Errorf("email = %q, want dev@x", s)
	}
}

func TestCodecRoundTripEdge(t *testing.T) {
	props, _ := NewDictFromEntries(DictEntry{Key: "weight", Value: NewFloat(5, 1)})
	edge := NewEdge(42, "FOLLOWS", 1, 2, props)
	got := roundTrip(t, edge)
	if !got.Equal(edge) {
		t.Errorf("round trip mismatch: got %s, want %s", got, edge)
	}
}

func TestCodecRoundTripDict(t *testing.T) {
	d, err := NewDictFromEntries(
		DictEntry{Key: "a", Value: NewInt(1)},
		DictEntry{Key: "b", Value: NewInt(2)},
		DictEntry{Key: "c", Value: NewInt(3)},
	)
	if err != nil {
		t.Fatalf("NewDictFromEntries: %v", err)
	}
	v := NewDict(d)
	got := roundTrip(t, v)
	gotDict, ok := got.DictValue()
	if !ok {
		t.Fatal("expected Dict")
	}
	if diff := cmp.Diff(gotDict.Keys(), []string{"a", "b", "c"}); diff != "" {
		t.Errorf("key order not preserved (-got +want):\n%s", diff)
	}
}

func TestDecodeTruncatedFailsWithCodecError(t *testing.T) {
	encoded, err := Encode(NewText("hello"))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	_, _, err = Decode(encoded[:len(encoded)-2])
	if err == nil {
		t.Fatal("expected error decoding truncated input")
	}
	var ce *CodecError
	if !asCodecError(err, &ce) {
		t.Fatalf("expected *CodecError, got %T: %v", err, err)
	}
}

func TestDecodeUnknownTagFails(t *testing.T) {
	_, _, err := Decode([]byte{255})
	if err == nil {
		t.Fatal("expected error decoding unknown type tag")
	}
	var ce *CodecError
	if !asCodecError(err, &ce) {
		t.Fatalf("expected *CodecError, got %T: %v", err, err)
	}
}

func asCodecError(err error, target **CodecError) bool {
	if ce, ok := err.(*CodecError); ok {
		*target = ce
		return true
	}
	return false
}

func TestDictRejectsDuplicateKeys(t *testing.T) {
	_, err := NewDictFromEntries(
		DictEntry{Key: "a", Value: NewInt(1)},
		DictEntry{Key: "a", Value: NewInt(2)},
	)
	if err == nil {
		t.Fatal("expected duplicate key error")
	}
}
