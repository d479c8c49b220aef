// Package persistence stores and reloads search runs.
//
// A run consists of two blobs under a common name:
//
//	<name>/cache.tsv[.zst|.lz4]   one row per retained cache entry
//	<name>/manifest.json          dataset shape, options, incumbent, layer stats
//
// The dump is a tab-separated table with a header row and the fixed column order
// prefix, length, first, prediction, default_rule, accuracy, upper_bound,
// num_captured, num_captured_correct. Prefix and prediction are comma-joined;
// the root entry has an empty prefix and first = -1.
//
// The manifest records a CRC32 of the stored dump bytes. LoadRun verifies it
// before parsing, so a truncated or corrupted upload is rejected instead of
// silently resuming from partial state.
package persistence
