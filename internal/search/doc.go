// Package search implements the breadth-first branch-and-bound search over
// rule prefixes.
//
// A Driver expands the prefixes of one length at a time. For every retained
// prefix of length i-1 it evaluates each unused rule as clause i with the
// Evaluator, discards extensions that capture nothing or cannot beat the
// Incumbent, and records the rest through a pmap.Map that drops permutations
// of already cached prefixes. Each layer ends with a completeness check of its
// LayerStats.
package search
