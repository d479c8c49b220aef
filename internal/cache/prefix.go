package cache

import (
	"encoding/binary"
	"slices"
	"strconv"
	"strings"
)

// MaxRules is the largest rule count a Prefix can index.
const MaxRules = 1 << 16

// Prefix is an ordered, duplicate-free sequence of rule indices.
type Prefix []uint16

// Key is the canonical encoding of a Prefix: a big-endian uint16 length
// followed by one big-endian uint16 per index. Byte order of keys of equal
// length matches lexicographic order of the prefixes.
type Key string

// Key returns the canonical key of p.
func (p Prefix) Key() Key {
	buf := make([]byte, 2+2*len(p))
	binary.BigEndian.PutUint16(buf, uint16(len(p)))
	for i, r := range p {
		binary.BigEndian.PutUint16(buf[2+2*i:], r)
	}
	return Key(buf)
}

// Prefix decodes k.
func (k Key) Prefix() Prefix {
	n := int(binary.BigEndian.Uint16([]byte(k[:2])))
	p := make(Prefix, n)
	for i := range n {
		p[i] = binary.BigEndian.Uint16([]byte(k[2+2*i : 4+2*i]))
	}
	return p
}

// Len returns the prefix length encoded in k.
func (k Key) Len() int {
	return int(binary.BigEndian.Uint16([]byte(k[:2])))
}

// Contains reports whether rule r appears in p.
func (p Prefix) Contains(r uint16) bool {
	return slices.Contains(p, r)
}

// Append returns a new prefix with r appended. p is not modified.
func (p Prefix) Append(r uint16) Prefix {
	out := make(Prefix, len(p)+1)
	copy(out, p)
	out[len(p)] = r
	return out
}

// First returns the first rule index, or -1 for the root.
func (p Prefix) First() int {
	if len(p) == 0 {
		return -1
	}
	return int(p[0])
}

// Ints returns the indices as ints.
func (p Prefix) Ints() []int {
	out := make([]int, len(p))
	for i, r := range p {
		out[i] = int(r)
	}
	return out
}

// FromInts converts rule indices. The caller validates the range.
func FromInts(xs []int) Prefix {
	p := make(Prefix, len(xs))
	for i, x := range xs {
		p[i] = uint16(x)
	}
	return p
}

// String renders p as "(2, 0, 5)"; the root is "()".
func (p Prefix) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, r := range p {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.Itoa(int(r)))
	}
	sb.WriteByte(')')
	return sb.String()
}

// Compare orders prefixes by (length, first, remaining indices).
func Compare(a, b Prefix) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return slices.Compare(a, b)
}
