// Package bits provides fixed-capacity bit vectors and zero-copy views over
// them. It is the storage layer under every value the semantic core folds.
package bits

import (
	"fmt"
	"math/bits"
	"strings"
)

// MaxBits bounds the capacity of a single vector.
const MaxBits = 8192

// Vector is a fixed-length sequence of bits. Bit i lives in word i/64 at
// position i%64; offsets and widths in the API are always in bits.
type Vector struct {
	n     int
	words []uint64
}

// New returns a zero-filled vector of n bits.
// Panics if n is negative or exceeds MaxBits.
func New(n int) *Vector {
	if n < 0 || n > MaxBits {
		panic(fmt.Sprintf("bits: invalid vector length %d", n))
	}
	return &Vector{n: n, words: make([]uint64, (n+63)/64)}
}

// FromUint64 returns an n-bit vector whose low bits hold x.
func FromUint64(n int, x uint64) *Vector {
	v := New(n)
	if n > 0 {
		w := n
		if w > 64 {
			w = 64
		}
		v.Write(0, w, x)
	}
	return v
}

// Len returns the vector length in bits.
func (v *Vector) Len() int { return v.n }

// Words returns a copy of the backing words, least significant first.
func (v *Vector) Words() []uint64 {
	out := make([]uint64, len(v.words))
	copy(out, v.words)
	return out
}

func mask(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return uint64(1)<<uint(width) - 1
}

func (v *Vector) check(off, width int) {
	if off < 0 || width < 0 || off+width > v.n {
		panic(fmt.Sprintf("bits: range [%d,%d) out of bounds for length %d", off, off+width, v.n))
	}
}

// Read returns width bits starting at off, right-aligned. width must be <= 64.
func (v *Vector) Read(off, width int) uint64 {
	v.check(off, width)
	if width > 64 {
		panic(fmt.Sprintf("bits: read width %d exceeds 64", width))
	}
	if width == 0 {
		return 0
	}
	w, b := off/64, uint(off%64)
	x := v.words[w] >> b
	if b != 0 && int(b)+width > 64 {
		x |= v.words[w+1] << (64 - b)
	}
	return x & mask(width)
}

// Write stores the low width bits of x at off. width must be <= 64.
func (v *Vector) Write(off, width int, x uint64) {
	v.check(off, width)
	if width > 64 {
		panic(fmt.Sprintf("bits: write width %d exceeds 64", width))
	}
	if width == 0 {
		return
	}
	m := mask(width)
	x &= m
	w, b := off/64, uint(off%64)
	v.words[w] = v.words[w]&^(m<<b) | x<<b
	if b != 0 && int(b)+width > 64 {
		sh := 64 - b
		v.words[w+1] = v.words[w+1]&^(m>>sh) | x>>sh
	}
}

// ReadVector copies width bits starting at off into a new vector.
func (v *Vector) ReadVector(off, width int) *Vector {
	v.check(off, width)
	out := New(width)
	copyBits(out, 0, v, off, width)
	return out
}

// PopCount returns the number of set bits in [off, off+width).
func (v *Vector) PopCount(off, width int) int {
	v.check(off, width)
	n := 0
	for done := 0; done < width; done += 64 {
		chunk := width - done
		if chunk > 64 {
			chunk = 64
		}
		n += bits.OnesCount64(v.Read(off+done, chunk))
	}
	return n
}

// Clone returns an independent copy of v.
func (v *Vector) Clone() *Vector {
	out := &Vector{n: v.n, words: make([]uint64, len(v.words))}
	copy(out.words, v.words)
	return out
}

// Equal reports whether both vectors have the same length and bits.
func (v *Vector) Equal(o *Vector) bool {
	if v == nil || o == nil {
		return v == o
	}
	if v.n != o.n {
		return false
	}
	for i := range v.words {
		if v.words[i] != o.words[i] {
			return false
		}
	}
	return true
}

// View returns a view over the whole vector.
func (v *Vector) View() View { return View{vec: v, off: 0, n: v.n} }

// Slice returns a zero-copy view over [off, off+n).
func (v *Vector) Slice(off, n int) View {
	v.check(off, n)
	return View{vec: v, off: off, n: n}
}

// String renders the vector most significant bit first.
func (v *Vector) String() string {
	var sb strings.Builder
	for i := v.n - 1; i >= 0; i-- {
		if v.Read(i, 1) == 1 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// copyBits copies n bits from src[sOff:] to dst[dOff:].
func copyBits(dst *Vector, dOff int, src *Vector, sOff int, n int) {
	if dst == src {
		src = src.Clone()
	}
	for done := 0; done < n; done += 64 {
		chunk := n - done
		if chunk > 64 {
			chunk = 64
		}
		dst.Write(dOff+done, chunk, src.Read(sOff+done, chunk))
	}
}
