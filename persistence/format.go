package persistence

import "errors"

const (
	// FormatVersion is the current run format version.
	FormatVersion = 1

	// ManifestBlob is the manifest blob name inside a run.
	ManifestBlob = "manifest.json"
	// DumpBlob is the base name of the dump blob inside a run.
	DumpBlob = "cache.tsv"
)

var (
	ErrInvalidVersion   = errors.New("unsupported run format version")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrCorruptRun       = errors.New("corrupt run")
)
