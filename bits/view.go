package bits

import "fmt"

// View is a window onto a sub-range of a Vector. Views never copy: writes
// through a view land in the underlying vector.
type View struct {
	vec *Vector
	off int
	n   int
}

// Len returns the view length in bits.
func (w View) Len() int { return w.n }

// Offset returns the view origin within its vector.
func (w View) Offset() int { return w.off }

// IsZero reports whether w is the zero View (no backing vector).
func (w View) IsZero() bool { return w.vec == nil }

func (w View) check(off, width int) {
	if off < 0 || width < 0 || off+width > w.n {
		panic(fmt.Sprintf("bits: view range [%d,%d) out of bounds for length %d", off, off+width, w.n))
	}
}

// Read returns width (<= 64) bits at off relative to the view origin.
func (w View) Read(off, width int) uint64 {
	w.check(off, width)
	return w.vec.Read(w.off+off, width)
}

// Write stores the low width bits of x at off relative to the view origin.
func (w View) Write(off, width int, x uint64) {
	w.check(off, width)
	w.vec.Write(w.off+off, width, x)
}

// ReadVector copies width bits at off into a new vector.
func (w View) ReadVector(off, width int) *Vector {
	w.check(off, width)
	return w.vec.ReadVector(w.off+off, width)
}

// WriteVector copies all of src into the view starting at off.
func (w View) WriteVector(off int, src *Vector) {
	w.check(off, src.Len())
	copyBits(w.vec, w.off+off, src, 0, src.Len())
}

// Slice narrows the view to [off, off+n) without copying.
func (w View) Slice(off, n int) View {
	w.check(off, n)
	return View{vec: w.vec, off: w.off + off, n: n}
}

// PopCount returns the number of set bits in [off, off+width).
func (w View) PopCount(off, width int) int {
	w.check(off, width)
	return w.vec.PopCount(w.off+off, width)
}

// Vector returns a copy of the bits covered by the view.
func (w View) Vector() *Vector {
	return w.vec.ReadVector(w.off, w.n)
}
