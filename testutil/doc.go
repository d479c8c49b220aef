// Package testutil provides testing utilities for corels.
//
// This package is intended for use in tests and benchmarks only.
// It provides a deterministic random source, synthetic datasets, and a
// brute-force oracle that scores every rule list directly.
//
// # Synthetic Datasets
//
//	rng := testutil.NewRNG(seed)
//	ds := rng.Dataset(64, 6, 0.3) // 64 samples, 6 rules, 30% capture density
//
// # Brute Force
//
//	acc, prefix := testutil.BruteForce(ds, 3)
package testutil
