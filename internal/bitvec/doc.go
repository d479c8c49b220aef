// Package bitvec provides fixed-width packed bit vectors over the rows of a dataset.
//
// Architecture:
//   - Width is fixed at construction (one bit per data row)
//   - Storage is a []uint64 word array from github.com/bits-and-blooms/bitset
//   - Binary operations require equal widths; a mismatch is a programming error and panics
//
// Used internally for:
//   - Rule capture sets and the positive-label vector
//   - The not-captured residual of every cached prefix
package bitvec
