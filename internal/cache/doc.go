// Package cache stores the evaluation record of every surviving rule prefix.
//
// Entries are grouped by prefix length, and each length is split across 64
// shards selected with maphash, each with its own RWMutex, so parallel
// expansion of one layer rarely contends with itself.
//
// Key features:
//   - At most one entry per prefix: Put never overwrites
//   - Replace is the only overwrite path, reserved for permutation dedup
//   - EntriesOfLength iterates one layer in lexicographic prefix order
//   - Serialize emits rows ordered by (length, first, prefix)
//   - Optional ResourceController tracks entry memory
package cache
