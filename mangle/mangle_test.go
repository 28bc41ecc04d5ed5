package mangle

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
)

func TestKeyEqualForEqualArgs(t *testing.T) {
	a := []Arg{{Type: 7, Len: 32, Words: []uint64{3}}, {Type: 9, Len: 1, Words: []uint64{1}}}
	b := []Arg{{Type: 7, Len: 32, Words: []uint64{3, 0}}, {Type: 9, Len: 1, Words: []uint64{1}, Text: "true"}}

	ka, err := Key(a)
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}
	kb, err := Key(b)
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}
	if ka != kb {
		t.Errorf("keys differ for equal argument lists: %x vs %x", ka, kb)
	}
}

func TestKeyDistinguishesValueAndType(t *testing.T) {
	base, _ := Key([]Arg{{Type: 7, Len: 32, Words: []uint64{3}}})
	otherValue, _ := Key([]Arg{{Type: 7, Len: 32, Words: []uint64{4}}})
	otherType, _ := Key([]Arg{{Type: 8, Len: 32, Words: []uint64{3}}})
	otherLen, _ := Key([]Arg{{Type: 7, Len: 16, Words: []uint64{3}}})

	if base == otherValue {
		t.Error("different values share a key")
	}
	if base == otherType {
		t.Error("different types share a key")
	}
	if base == otherLen {
		t.Error("different lengths share a key")
	}
}

func TestKeyOrderMatters(t *testing.T) {
	k1, _ := Key([]Arg{{Type: 1, Len: 8, Words: []uint64{1}}, {Type: 1, Len: 8, Words: []uint64{2}}})
	k2, _ := Key([]Arg{{Type: 1, Len: 8, Words: []uint64{2}}, {Type: 1, Len: 8, Words: []uint64{1}}})
	if k1 == k2 {
		t.Error("argument order ignored")
	}
}

// decode reads a key back into its envelope.
func decode(t *testing.T, key string) envelope {
	t.Helper()
	var e envelope
	if err := cbor.Unmarshal([]byte(key), &e); err != nil {
		t.Fatalf("key is not CBOR: %v", err)
	}
	return e
}

func TestKeyEncoding(t *testing.T) {
	k, err := Key([]Arg{{Type: 5, Len: 70, Words: []uint64{1, 2, 0}, Text: "x"}})
	if err != nil {
		t.Fatal(err)
	}
	e := decode(t, k)
	if e.Version != Version {
		t.Errorf("version = %d, want %d", e.Version, Version)
	}
	if len(e.Args) != 1 {
		t.Fatalf("len(args) = %d, want 1", len(e.Args))
	}
	a := e.Args[0]
	if a.Type != 5 || a.Len != 70 || len(a.Words) != 2 || a.Words[1] != 2 || a.Text != "" {
		t.Errorf("encoded arg = %+v, want trimmed words and no text", a)
	}
}

func TestName(t *testing.T) {
	got := Name("Q", []Arg{{Text: "3"}, {Text: "true"}})
	if got != "Q(3,true)" {
		t.Errorf("Name = %q, want %q", got, "Q(3,true)")
	}
	if got := Name("E", nil); got != "E()" {
		t.Errorf("Name = %q, want %q", got, "E()")
	}
}
