// Package mangle produces the canonical encoding of constant template
// arguments. Two argument lists encode to the same key exactly when they are
// equal by type identity and bit pattern, so the key is usable as the
// instantiation cache key of a class template.
package mangle

import (
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// Version is the first element of every encoded key.
const Version = 1

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("mangle: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// Arg is one constant template argument, reduced to what identifies it.
type Arg struct {
	Type  uint64   `cbor:"1,keyasint"` // type identity of the argument's basic type
	Len   int      `cbor:"2,keyasint"` // bit length of the value
	Words []uint64 `cbor:"3,keyasint"` // little-endian 64-bit words, unused high bits zero

	// Text is the human-readable rendering used by Name. It does not take
	// part in the key.
	Text string `cbor:"-"`
}

type envelope struct {
	_       struct{} `cbor:",toarray"`
	Version int
	Args    []Arg
}

// Key returns the canonical byte string for args. An empty or nil list
// yields the key of a template instantiated with no arguments.
func Key(args []Arg) (string, error) {
	norm := make([]Arg, len(args))
	for i, a := range args {
		norm[i] = Arg{Type: a.Type, Len: a.Len, Words: trim(a.Words)}
	}
	b, err := encMode.Marshal(envelope{Version: Version, Args: norm})
	if err != nil {
		return "", fmt.Errorf("mangle: encode args: %w", err)
	}
	return string(b), nil
}

// Name renders an instance name such as "Q(3,true)" from the template name
// and the arguments' Text.
func Name(template string, args []Arg) string {
	var sb strings.Builder
	sb.WriteString(template)
	sb.WriteByte('(')
	for i, a := range args {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(a.Text)
	}
	sb.WriteByte(')')
	return sb.String()
}

// trim drops trailing zero words so equal values of differing storage
// capacity share a key.
func trim(words []uint64) []uint64 {
	n := len(words)
	for n > 0 && words[n-1] == 0 {
		n--
	}
	if n == 0 {
		return nil
	}
	out := make([]uint64, n)
	copy(out, words[:n])
	return out
}
