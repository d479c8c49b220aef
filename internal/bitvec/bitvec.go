package bitvec

import (
	"encoding/binary"
	"fmt"
	"hash/maphash"
	"io"
	"iter"
	"strings"

	"github.com/bits-and-blooms/bitset"
)

// Vector is a fixed-width bit vector. The zero value is not usable; use New.
//
// Vectors are not safe for concurrent mutation. Vectors stored in the cache are
// never mutated after construction, so concurrent readers are fine.
type Vector struct {
	bs *bitset.BitSet
}

// New creates an all-zero vector of the given width.
func New(width uint) *Vector {
	return &Vector{bs: bitset.New(width)}
}

// Ones creates an all-one vector of the given width.
func Ones(width uint) *Vector {
	v := New(width)
	v.bs.SetAll()
	return v
}

// FromBools creates a vector whose bit i is set when bits[i] is true.
func FromBools(bits []bool) *Vector {
	v := New(uint(len(bits)))
	for i, b := range bits {
		if b {
			v.bs.Set(uint(i))
		}
	}
	return v
}

// Len returns the width in bits.
func (v *Vector) Len() uint {
	return v.bs.Len()
}

// Set sets bit i. Out-of-range indices are ignored.
func (v *Vector) Set(i uint) {
	if i >= v.bs.Len() {
		return
	}
	v.bs.Set(i)
}

// Test reports whether bit i is set.
func (v *Vector) Test(i uint) bool {
	return v.bs.Test(i)
}

// Count returns the number of set bits (popcount).
func (v *Vector) Count() int {
	return int(v.bs.Count())
}

// And returns v AND o as a new vector.
func (v *Vector) And(o *Vector) *Vector {
	v.mustMatch(o)
	return &Vector{bs: v.bs.Intersection(o.bs)}
}

// AndNot returns v AND NOT o as a new vector.
func (v *Vector) AndNot(o *Vector) *Vector {
	v.mustMatch(o)
	return &Vector{bs: v.bs.Difference(o.bs)}
}

// Or returns v OR o as a new vector.
func (v *Vector) Or(o *Vector) *Vector {
	v.mustMatch(o)
	return &Vector{bs: v.bs.Union(o.bs)}
}

// Not returns the complement of v within its width.
func (v *Vector) Not() *Vector {
	return &Vector{bs: v.bs.Complement()}
}

// AndCount returns popcount(v AND o) without allocating.
func (v *Vector) AndCount(o *Vector) int {
	v.mustMatch(o)
	return int(v.bs.IntersectionCardinality(o.bs))
}

// AndNotCount returns popcount(v AND NOT o) without allocating.
func (v *Vector) AndNotCount(o *Vector) int {
	v.mustMatch(o)
	return int(v.bs.DifferenceCardinality(o.bs))
}

// Equal reports whether both vectors have the same width and bits.
func (v *Vector) Equal(o *Vector) bool {
	if v == nil || o == nil {
		return v == o
	}
	return v.bs.Equal(o.bs)
}

// Clone returns an independent copy.
func (v *Vector) Clone() *Vector {
	return &Vector{bs: v.bs.Clone()}
}

// Ones iterates over the positions of set bits in increasing order.
func (v *Vector) Ones() iter.Seq[uint] {
	return v.bs.EachSet()
}

// Hash returns a seeded hash of the width and contents.
func (v *Vector) Hash(seed maphash.Seed) uint64 {
	var h maphash.Hash
	h.SetSeed(seed)

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v.bs.Len()))
	_, _ = h.Write(buf[:])

	for _, w := range v.bs.Words() {
		binary.LittleEndian.PutUint64(buf[:], w)
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}

// WriteTo writes the width and words of v in the bitset binary format.
func (v *Vector) WriteTo(w io.Writer) (int64, error) {
	return v.bs.WriteTo(w)
}

// SizeBytes approximates the heap footprint of the vector.
func (v *Vector) SizeBytes() int {
	return len(v.bs.Words())*8 + 32
}

// String renders the vector as 0/1 characters, bit 0 first.
func (v *Vector) String() string {
	var sb strings.Builder
	sb.Grow(int(v.bs.Len()))
	for i := uint(0); i < v.bs.Len(); i++ {
		if v.bs.Test(i) {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

func (v *Vector) mustMatch(o *Vector) {
	if v.bs.Len() != o.bs.Len() {
		panic(fmt.Sprintf("bitvec: width mismatch %d != %d", v.bs.Len(), o.bs.Len()))
	}
}
