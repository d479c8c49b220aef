package search

import (
	"math"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/alexzheng587/corels/internal/cache"
)

// Incumbent is the best (accuracy, prefix) pair found so far. Raises are
// serialized by a mutex; the accuracy is mirrored in an atomic for the
// relaxed reads of the bounding tests.
type Incumbent struct {
	mu       sync.Mutex
	accuracy float64
	prefix   cache.Prefix
	known    bool
	version  uint64

	mirror atomic.Uint64
}

// Snapshot is a consistent copy of the incumbent.
type Snapshot struct {
	Accuracy float64
	Prefix   cache.Prefix
	// Known is false when the accuracy was supplied without a list.
	Known   bool
	Version uint64
}

// NewIncumbent creates an incumbent at accuracy. prefix is ignored unless
// known is set.
func NewIncumbent(accuracy float64, prefix cache.Prefix, known bool) *Incumbent {
	in := &Incumbent{accuracy: accuracy, known: known}
	if known {
		in.prefix = slices.Clone(prefix)
	}
	in.mirror.Store(math.Float64bits(accuracy))
	return in
}

// Accuracy returns the current accuracy without locking.
func (in *Incumbent) Accuracy() float64 {
	return math.Float64frombits(in.mirror.Load())
}

// Raise replaces the incumbent when accuracy is strictly greater.
func (in *Incumbent) Raise(accuracy float64, prefix cache.Prefix) bool {
	if accuracy <= in.Accuracy() {
		return false
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	if accuracy <= in.accuracy {
		return false
	}
	in.accuracy = accuracy
	in.prefix = slices.Clone(prefix)
	in.known = true
	in.version++
	in.mirror.Store(math.Float64bits(accuracy))
	return true
}

// Snapshot returns a copy of the incumbent.
func (in *Incumbent) Snapshot() Snapshot {
	in.mu.Lock()
	defer in.mu.Unlock()
	return Snapshot{
		Accuracy: in.accuracy,
		Prefix:   slices.Clone(in.prefix),
		Known:    in.known,
		Version:  in.version,
	}
}
