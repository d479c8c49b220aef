package pmap

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/maphash"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/alexzheng587/corels/internal/cache"
)

const numShards = 64

// Mode selects the equivalence used to detect redundant entries.
type Mode uint8

const (
	// Off records every entry.
	Off Mode = iota
	// RuleSet treats prefixes with the same rule set as equivalent.
	RuleSet
	// Captured treats prefixes with the same uncaptured rows as equivalent,
	// whatever their rules.
	Captured
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case RuleSet:
		return "ruleset"
	case Captured:
		return "captured"
	default:
		return "off"
	}
}

// ParseMode parses a mode name. "true" and "false" map to RuleSet and Off.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "off", "none", "false", "":
		return Off, nil
	case "ruleset", "rule-set", "true", "on":
		return RuleSet, nil
	case "captured":
		return Captured, nil
	default:
		return Off, fmt.Errorf("unknown garbage collection mode %q", s)
	}
}

// Outcome is the result of recording an entry.
type Outcome uint8

const (
	// Canonical means the entry was inserted as the first of its signature.
	Canonical Outcome = iota
	// Replaced means the entry displaced a worse equivalent entry.
	Replaced
	// Inferior means an equivalent entry at least as good was already cached
	// and the new one was discarded.
	Inferior
)

func (o Outcome) String() string {
	switch o {
	case Canonical:
		return "canonical"
	case Replaced:
		return "replaced"
	default:
		return "inferior"
	}
}

// ErrConflict is matched by ConflictError.
var ErrConflict = errors.New("permutation map conflict")

// ConflictError reports two prefixes with the same rule set but different
// uncaptured rows, which the capture model rules out.
type ConflictError struct {
	Existing *cache.Entry
	Incoming *cache.Entry
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("permutation map: rule set of %s matches %s but uncaptured rows differ (existing: %s; incoming: %s)",
		e.Incoming.Prefix, e.Existing.Prefix, e.Existing.Summary(), e.Incoming.Summary())
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

type slot struct {
	rules *roaring.Bitmap
	entry *cache.Entry
}

type shard struct {
	mu sync.Mutex
	m  map[uint64][]*slot
}

// Map tracks the canonical entry of each signature of one prefix length.
type Map struct {
	mode  Mode
	cache *cache.Cache
	seed  maphash.Seed

	shards [numShards]shard

	canonical atomic.Int64
	replaced  atomic.Int64
	inferior  atomic.Int64
}

// New creates a map that records entries into c.
func New(mode Mode, c *cache.Cache) *Map {
	m := &Map{
		mode:  mode,
		cache: c,
		seed:  maphash.MakeSeed(),
	}
	for i := range m.shards {
		m.shards[i].m = make(map[uint64][]*slot)
	}
	return m
}

// Mode returns the map's equivalence mode.
func (m *Map) Mode() Mode { return m.mode }

// Rules returns the rules of p as a bitmap.
func Rules(p cache.Prefix) *roaring.Bitmap {
	bm := roaring.New()
	for _, r := range p {
		bm.Add(uint32(r))
	}
	return bm
}

func (m *Map) signature(e *cache.Entry, rules *roaring.Bitmap) uint64 {
	if m.mode == Captured {
		return e.NotCaptured.Hash(m.seed)
	}
	var h maphash.Hash
	h.SetSeed(m.seed)
	var buf [4]byte
	rules.Iterate(func(x uint32) bool {
		binary.LittleEndian.PutUint32(buf[:], x)
		_, _ = h.Write(buf[:])
		return true
	})
	return h.Sum64()
}

func (m *Map) match(s *slot, e *cache.Entry, rules *roaring.Bitmap) bool {
	if m.mode == Captured {
		return s.entry.NotCaptured.Equal(e.NotCaptured)
	}
	return s.rules.Equals(rules)
}

// Record inserts e into the cache unless an equivalent entry at least as good
// is already there. Among equivalent entries the one with more correctly
// classified captured rows survives; ties keep the first inserted.
func (m *Map) Record(e *cache.Entry) (Outcome, error) {
	if m.mode == Off {
		if err := m.cache.Put(e); err != nil {
			return Canonical, err
		}
		m.canonical.Add(1)
		return Canonical, nil
	}

	var rules *roaring.Bitmap
	if m.mode == RuleSet {
		rules = Rules(e.Prefix)
	}
	sig := m.signature(e, rules)
	sh := &m.shards[sig%numShards]

	sh.mu.Lock()
	defer sh.mu.Unlock()

	for _, s := range sh.m[sig] {
		if !m.match(s, e, rules) {
			continue
		}
		if !s.entry.NotCaptured.Equal(e.NotCaptured) {
			return Inferior, &ConflictError{Existing: s.entry, Incoming: e}
		}
		if e.NumCapturedCorrect <= s.entry.NumCapturedCorrect {
			m.inferior.Add(1)
			return Inferior, nil
		}
		if err := m.cache.Replace(s.entry.Prefix, e); err != nil {
			return Inferior, err
		}
		s.entry = e
		s.rules = rules
		m.replaced.Add(1)
		return Replaced, nil
	}

	if err := m.cache.Put(e); err != nil {
		return Canonical, err
	}
	sh.m[sig] = append(sh.m[sig], &slot{rules: rules, entry: e})
	m.canonical.Add(1)
	return Canonical, nil
}

// Stats returns how many recorded entries ended in each outcome.
func (m *Map) Stats() (canonical, replaced, inferior int) {
	return int(m.canonical.Load()), int(m.replaced.Load()), int(m.inferior.Load())
}

// Len returns the number of signatures tracked.
func (m *Map) Len() int {
	n := 0
	for i := range m.shards {
		sh := &m.shards[i]
		sh.mu.Lock()
		for _, slots := range sh.m {
			n += len(slots)
		}
		sh.mu.Unlock()
	}
	return n
}
