// Package ledger records the best decision list found for a dataset across runs.
//
// A ledger is consulted before a search to seed the incumbent and offered the
// final incumbent afterwards. Offers only succeed when they strictly improve the
// recorded accuracy, so concurrent runs on the same key never regress it.
package ledger

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"
)

// ErrNotFound is returned by Get when no record exists for a key.
var ErrNotFound = errors.New("ledger: no record")

// Record is the best known list for a key.
type Record struct {
	Key       string
	Accuracy  float64
	Prefix    []int
	Version   uint64
	UpdatedAt time.Time
}

// Ledger is a store of per-key incumbents. Implementations must be safe for
// concurrent use.
type Ledger interface {
	// Get returns the record for key or ErrNotFound.
	Get(ctx context.Context, key string) (Record, error)
	// Offer stores rec if its accuracy is strictly greater than the stored one
	// (or nothing is stored). It reports whether rec was written.
	Offer(ctx context.Context, rec Record) (bool, error)
}

// Memory is an in-process Ledger.
type Memory struct {
	mu      sync.Mutex
	records map[string]Record
	now     func() time.Time
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]Record), now: time.Now}
}

// Get implements Ledger.
func (m *Memory) Get(_ context.Context, key string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[key]
	if !ok {
		return Record{}, ErrNotFound
	}
	rec.Prefix = slices.Clone(rec.Prefix)
	return rec, nil
}

// Offer implements Ledger.
func (m *Memory) Offer(_ context.Context, rec Record) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.records[rec.Key]
	if ok && rec.Accuracy <= cur.Accuracy {
		return false, nil
	}
	rec.Prefix = slices.Clone(rec.Prefix)
	rec.Version = cur.Version + 1
	rec.UpdatedAt = m.now()
	m.records[rec.Key] = rec
	return true, nil
}
