// Package pmap deduplicates cache entries that differ only in rule order.
//
// Prefixes built from the same rules in a different order leave the same
// rows uncaptured, so their subtrees are identical and one representative is
// enough. A Map is scoped to one prefix length and performs the cache
// mutation for each recorded entry, so at most one writer creates the
// canonical entry of a signature.
package pmap
