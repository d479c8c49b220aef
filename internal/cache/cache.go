package cache

import (
	"errors"
	"fmt"
	"hash/maphash"
	"iter"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/alexzheng587/corels/internal/resource"
	"github.com/alexzheng587/corels/persistence"
)

const numShards = 64

var (
	// ErrDuplicateKey is returned by Put when the prefix is already cached.
	ErrDuplicateKey = errors.New("duplicate cache key")
	// ErrPrefixTooLong is returned for prefixes beyond the cache's max length.
	ErrPrefixTooLong = errors.New("prefix exceeds max length")
	// ErrNotCached is returned by Replace when the prefix to replace is absent.
	ErrNotCached = errors.New("prefix not cached")
)

type shard struct {
	mu sync.RWMutex
	m  map[Key]*Entry
}

type layer struct {
	shards [numShards]shard
	n      atomic.Int64
}

// Cache maps prefixes to entries, one layer per prefix length.
type Cache struct {
	seed   maphash.Seed
	layers []*layer
	bytes  atomic.Int64
	rc     *resource.Controller
}

// Option configures a Cache.
type Option func(*Cache)

// WithResourceController tracks entry memory in rc.
func WithResourceController(rc *resource.Controller) Option {
	return func(c *Cache) { c.rc = rc }
}

// New creates a cache for prefixes of length 0..maxLength.
func New(maxLength int, opts ...Option) *Cache {
	if maxLength < 0 {
		maxLength = 0
	}
	c := &Cache{
		seed:   maphash.MakeSeed(),
		layers: make([]*layer, maxLength+1),
	}
	for i := range c.layers {
		l := &layer{}
		for j := range l.shards {
			l.shards[j].m = make(map[Key]*Entry)
		}
		c.layers[i] = l
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MaxLength returns the longest prefix the cache accepts.
func (c *Cache) MaxLength() int {
	return len(c.layers) - 1
}

func (c *Cache) shardIndex(k Key) int {
	return int(maphash.String(c.seed, string(k)) % numShards)
}

func (c *Cache) layerOf(p Prefix) (*layer, error) {
	if len(p) >= len(c.layers) {
		return nil, fmt.Errorf("%w: %s longer than %d", ErrPrefixTooLong, p, c.MaxLength())
	}
	return c.layers[len(p)], nil
}

// Get returns the entry for prefix p.
func (c *Cache) Get(p Prefix) (*Entry, bool) {
	l, err := c.layerOf(p)
	if err != nil {
		return nil, false
	}
	k := p.Key()
	s := &l.shards[c.shardIndex(k)]
	s.mu.RLock()
	e, ok := s.m[k]
	s.mu.RUnlock()
	return e, ok
}

// Put inserts e. An existing entry for the same prefix is never overwritten.
func (c *Cache) Put(e *Entry) error {
	l, err := c.layerOf(e.Prefix)
	if err != nil {
		return err
	}
	k := e.Prefix.Key()
	s := &l.shards[c.shardIndex(k)]

	s.mu.Lock()
	if _, ok := s.m[k]; ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateKey, e.Prefix)
	}
	s.m[k] = e
	s.mu.Unlock()

	c.added(l, e)
	return nil
}

// Replace evicts old and inserts e in its place. Both prefixes must have the
// same length; old must be cached and e.Prefix must not be.
func (c *Cache) Replace(old Prefix, e *Entry) error {
	if len(old) != len(e.Prefix) {
		return fmt.Errorf("cache: replace %s with %s: length mismatch", old, e.Prefix)
	}
	l, err := c.layerOf(old)
	if err != nil {
		return err
	}
	oldKey, newKey := old.Key(), e.Prefix.Key()
	if oldKey == newKey {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, e.Prefix)
	}
	oi, ni := c.shardIndex(oldKey), c.shardIndex(newKey)
	oldShard, newShard := &l.shards[oi], &l.shards[ni]

	// Lock in shard order so concurrent replaces cannot deadlock.
	lo, hi := min(oi, ni), max(oi, ni)
	l.shards[lo].mu.Lock()
	defer l.shards[lo].mu.Unlock()
	if hi != lo {
		l.shards[hi].mu.Lock()
		defer l.shards[hi].mu.Unlock()
	}

	prev, found := oldShard.m[oldKey]
	if !found {
		return fmt.Errorf("%w: %s", ErrNotCached, old)
	}
	if _, dup := newShard.m[newKey]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, e.Prefix)
	}
	delete(oldShard.m, oldKey)
	newShard.m[newKey] = e

	c.removed(l, prev)
	c.added(l, e)
	return nil
}

// Evict removes the entry for p and reports whether it was present.
func (c *Cache) Evict(p Prefix) bool {
	l, err := c.layerOf(p)
	if err != nil {
		return false
	}
	k := p.Key()
	s := &l.shards[c.shardIndex(k)]

	s.mu.Lock()
	e, ok := s.m[k]
	if ok {
		delete(s.m, k)
	}
	s.mu.Unlock()

	if ok {
		c.removed(l, e)
	}
	return ok
}

func (c *Cache) added(l *layer, e *Entry) {
	n := e.SizeBytes()
	l.n.Add(1)
	c.bytes.Add(n)
	c.rc.TrackMemory(n)
}

func (c *Cache) removed(l *layer, e *Entry) {
	n := e.SizeBytes()
	l.n.Add(-1)
	c.bytes.Add(-n)
	c.rc.ReleaseMemory(n)
}

// Len returns the total number of entries.
func (c *Cache) Len() int {
	var n int64
	for _, l := range c.layers {
		n += l.n.Load()
	}
	return int(n)
}

// LenOf returns the number of entries of length k.
func (c *Cache) LenOf(k int) int {
	if k < 0 || k >= len(c.layers) {
		return 0
	}
	return int(c.layers[k].n.Load())
}

// Bytes returns the approximate memory held by all entries.
func (c *Cache) Bytes() int64 {
	return c.bytes.Load()
}

// EntriesOfLength iterates the entries of length k in lexicographic prefix
// order. Each range snapshots the keys; entries evicted meanwhile are skipped
// and entries added meanwhile are not visited.
func (c *Cache) EntriesOfLength(k int) iter.Seq2[Prefix, *Entry] {
	return func(yield func(Prefix, *Entry) bool) {
		if k < 0 || k >= len(c.layers) {
			return
		}
		l := c.layers[k]

		keys := make([]Key, 0, l.n.Load())
		for i := range l.shards {
			s := &l.shards[i]
			s.mu.RLock()
			for key := range s.m {
				keys = append(keys, key)
			}
			s.mu.RUnlock()
		}
		slices.Sort(keys)

		for _, key := range keys {
			s := &l.shards[c.shardIndex(key)]
			s.mu.RLock()
			e, ok := s.m[key]
			s.mu.RUnlock()
			if !ok {
				continue
			}
			if !yield(e.Prefix, e) {
				return
			}
		}
	}
}

// RowWriter receives serialized entries.
type RowWriter interface {
	WriteRow(persistence.Row) error
}

// Serialize writes one row per entry ordered by (length, first, prefix).
func (c *Cache) Serialize(w RowWriter) error {
	for k := range c.layers {
		for _, e := range c.EntriesOfLength(k) {
			if err := w.WriteRow(e.Row()); err != nil {
				return err
			}
		}
	}
	return nil
}
